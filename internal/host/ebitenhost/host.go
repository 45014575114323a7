// Package ebitenhost is the concrete ebiten-backed implementation of the
// host ports a machine.Machine needs: a window showing the frame buffer,
// keyboard input mapped to Game Boy buttons, and real-time pacing left to
// ebiten's own 60Hz update/draw loop.
package ebitenhost

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/GaminRick7/RetroGB/internal/machine"
)

const (
	screenWidth  = 160
	screenHeight = 144
)

// Config holds the window settings a host presents.
type Config struct {
	Title string
	Scale int
}

func (c *Config) defaults() {
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.Title == "" {
		c.Title = "RetroGB"
	}
}

// Host drives a machine.Machine from ebiten's Game loop: one StepFrame per
// ebiten Update, one Draw copying the PPU's ARGB32 buffer into the window.
type Host struct {
	cfg    Config
	m      *machine.Machine
	tex    *ebiten.Image
	pixels []byte // RGBA8888 scratch buffer, converted from the PPU's ARGB32 frame
	paused bool
}

// New constructs a Host and applies window settings immediately, matching
// the teacher's ui.NewApp behavior of configuring the window at construction.
func New(cfg Config, m *machine.Machine) *Host {
	cfg.defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenWidth*cfg.Scale, screenHeight*cfg.Scale)
	return &Host{cfg: cfg, m: m, pixels: make([]byte, screenWidth*screenHeight*4)}
}

// Run blocks until the window is closed or the Machine's Control is quit.
func (h *Host) Run() error { return ebiten.RunGame(h) }

// Update implements ebiten.Game: samples input, advances one frame.
func (h *Host) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		h.paused = !h.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		h.m.Control().Quit()
	}
	if h.m.Control().ShouldQuit() {
		return ebiten.Termination
	}
	h.m.Control().SetFastForward(ebiten.IsKeyPressed(ebiten.KeyTab))

	var btn machine.Buttons
	if !h.paused {
		btn.Right = ebiten.IsKeyPressed(ebiten.KeyRight)
		btn.Left = ebiten.IsKeyPressed(ebiten.KeyLeft)
		btn.Up = ebiten.IsKeyPressed(ebiten.KeyUp)
		btn.Down = ebiten.IsKeyPressed(ebiten.KeyDown)
		btn.A = ebiten.IsKeyPressed(ebiten.KeyZ)
		btn.B = ebiten.IsKeyPressed(ebiten.KeyX)
		btn.Start = ebiten.IsKeyPressed(ebiten.KeyEnter)
		btn.Select = ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	}
	h.m.SetButtons(btn)

	if h.paused {
		return nil
	}
	if h.m.Config().FastForward || h.m.Control().FastForward() {
		// Burn a few extra frames per ebiten tick so turbo actually speeds
		// up wall-clock playback instead of just skipping pacing sleeps.
		for i := 0; i < 4; i++ {
			if err := h.m.StepFrame(); err != nil {
				return err
			}
		}
		return nil
	}
	return h.m.StepFrame()
}

// Draw implements ebiten.Game: converts the PPU's ARGB32 buffer to RGBA8888
// and blits it to the window.
func (h *Host) Draw(screen *ebiten.Image) {
	if h.tex == nil {
		h.tex = ebiten.NewImage(screenWidth, screenHeight)
	}
	src := h.m.Framebuffer()
	for i, px := range src {
		o := i * 4
		h.pixels[o+0] = byte(px >> 16) // R
		h.pixels[o+1] = byte(px >> 8)  // G
		h.pixels[o+2] = byte(px)       // B
		h.pixels[o+3] = byte(px >> 24) // A
	}
	h.tex.WritePixels(h.pixels)
	screen.DrawImage(h.tex, nil)
}

// Layout implements ebiten.Game: the logical screen is always 160x144,
// ebiten handles scaling to the window via SetWindowSize.
func (h *Host) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}
