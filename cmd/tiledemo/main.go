// Command tiledemo paints a tiled surface on a producer goroutine while a
// consumer goroutine composites it, then saves the last frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/config"
	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/raster"
	"github.com/gogpu/backingstore/region"
	"github.com/gogpu/backingstore/schedule"
	"github.com/gogpu/backingstore/texture"
	"github.com/gogpu/backingstore/tile"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		frames     = flag.Int("frames", 0, "number of frames (overrides the configuration)")
		output     = flag.String("output", "tiles.png", "output file")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *frames > 0 {
		cfg.Demo.Frames = *frames
	}

	st, err := run(context.Background(), cfg, *output)
	if err != nil {
		log.Fatalf("tiledemo: %v", err)
	}
	printStats(st)
}

// grid is the tiled surface: one tile per cell, all showing one scene.
type grid struct {
	cfg   config.Config
	pool  *texture.Pool
	scene *scene
	tiles []*tile.Tile
}

func newGrid(cfg config.Config, pool *texture.Pool, r tile.Renderer) *grid {
	tw, th := pool.TileSize()
	content := image.Rect(0, 0,
		int(float64(cfg.Surface.Columns*tw)/cfg.Surface.Scale),
		int(float64(cfg.Surface.Rows*th)/cfg.Surface.Scale))
	g := &grid{
		cfg:   cfg,
		pool:  pool,
		scene: newScene(content, image.Pt(content.Dx()/5, content.Dy()/5)),
		tiles: make([]*tile.Tile, 0, cfg.Surface.Columns*cfg.Surface.Rows),
	}
	for range cfg.Surface.Columns * cfg.Surface.Rows {
		g.tiles = append(g.tiles, tile.New(pool, cfg.TileOptions(r)...))
	}
	return g
}

// cell returns the column and row of tile i.
func (g *grid) cell(i int) (int, int) {
	return i % g.cfg.Surface.Columns, i / g.cfg.Surface.Columns
}

// visit stamps every tile as visible in the current frame.
func (g *grid) visit() {
	for i, t := range g.tiles {
		x, y := g.cell(i)
		t.SetContents(g.scene, x, y, g.cfg.Surface.Scale)
	}
}

// invalidate marks damage, in content coordinates, on the tiles it touches.
func (g *grid) invalidate(version uint32, damage region.Region) {
	tw, th := g.pool.TileSize()
	s := g.cfg.Surface.Scale
	for i, t := range g.tiles {
		x, y := g.cell(i)
		bounds := geom.NewRect(float64(x*tw), float64(y*th), float64(tw), float64(th)).Scale(1 / s).RoundOut()
		if d := damage.Intersect(bounds); !d.IsEmpty() {
			t.MarkDirty(version, d)
		}
	}
}

// composite swaps every ready tile and draws the surface into sink.
func (g *grid) composite(sink tile.DrawSink) (stale int) {
	tw, th := g.pool.TileSize()
	for i, t := range g.tiles {
		t.SwapIfReady()
		x, y := g.cell(i)
		if !t.IsTexturePainted() {
			stale++
			continue
		}
		t.Draw(sink, 1, geom.NewRect(float64(x*tw), float64(y*th), float64(tw), float64(th)), g.cfg.Surface.Scale)
	}
	return stale
}

// frame composites one full frame into out.
func (g *grid) frame(out output, bg color.RGBA) (stale int, err error) {
	out.begin(bg)
	stale = g.composite(out)
	return stale, out.end()
}

// unsettled reports whether any tile still has paint or a swap pending.
func (g *grid) unsettled() bool {
	for _, t := range g.tiles {
		if t.IsDirty() || t.IsSwapNeeded() {
			return true
		}
	}
	return false
}

// settle paints and composites until every tile is clean and swapped, or
// until maxSettlePasses passes have run. It returns the passes it took.
func (g *grid) settle(sched *schedule.Scheduler, out output, bg color.RGBA) (passes, stale int, err error) {
	for passes < maxSettlePasses {
		passes++
		sched.PaintDirty(g.tiles)
		if stale, err = g.frame(out, bg); err != nil {
			return passes, stale, err
		}
		if !g.unsettled() {
			return passes, stale, nil
		}
	}
	backingstore.Logger().Warn("surface did not settle", "passes", passes)
	return passes, stale, nil
}

func (g *grid) close() {
	for _, t := range g.tiles {
		t.Close()
	}
}

// maxSettlePasses bounds the catch-up after the last frame.
const maxSettlePasses = 16

type stats struct {
	frames   int
	tiles    int
	stale    int
	sched    schedule.Stats
	raster   raster.Stats
	pool     texture.Stats
	quads    int
	settle   int
	sink     string
	filename string
}

func run(ctx context.Context, cfg config.Config, output string) (stats, error) {
	level, err := config.ParseLevel(cfg.Demo.LogLevel)
	if err != nil {
		return stats{}, err
	}
	backingstore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	defer backingstore.SetLogger(nil)

	tw, th := cfg.Pool.TileWidth, cfg.Pool.TileHeight
	out, poolOpts, err := newOutput(cfg, cfg.Surface.Columns*tw, cfg.Surface.Rows*th)
	if err != nil {
		return stats{}, err
	}
	defer out.close()

	pool, err := texture.NewPool(cfg.Pool.Slots, append(cfg.PoolOptions(), poolOpts...)...)
	if err != nil {
		return stats{}, err
	}
	defer func() { _ = pool.Close() }()

	renderer := raster.NewRenderer(cfg.RendererOptions()...)
	g := newGrid(cfg, pool, renderer)
	defer g.close()

	bg, err := config.ParseColor(cfg.Demo.Background)
	if err != nil {
		return stats{}, err
	}

	sched := schedule.New(cfg.SchedulerOptions()...)
	defer sched.Close()

	painted := make(chan int, 1)
	var stale int
	eg, ctx := errgroup.WithContext(ctx)

	// Producer: move the scene, invalidate, paint.
	eg.Go(func() error {
		defer close(painted)
		for frame := range cfg.Demo.Frames {
			g.visit()
			version, damage := g.scene.step(frame)
			g.invalidate(version, damage)
			n := sched.PaintDirty(g.tiles)
			backingstore.Logger().Debug("frame painted", "frame", frame, "tiles", n)
			select {
			case painted <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	// Consumer: swap, composite, advance the frame counter.
	eg.Go(func() error {
		for range painted {
			var err error
			if stale, err = g.frame(out, bg); err != nil {
				return err
			}
			pool.AdvanceFrame()
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return stats{}, err
	}

	// Catch up with the last paint so the saved frame is complete.
	passes, stale, err := g.settle(sched, out, bg)
	if err != nil {
		return stats{}, err
	}
	img, err := out.read()
	if err != nil {
		return stats{}, err
	}
	if err := savePNG(output, img); err != nil {
		return stats{}, err
	}
	return stats{
		frames:   cfg.Demo.Frames,
		tiles:    len(g.tiles),
		stale:    stale,
		sched:    sched.Stats(),
		raster:   renderer.Stats(),
		pool:     pool.Stats(),
		quads:    out.quads(),
		settle:   passes,
		sink:     cfg.Demo.Sink,
		filename: output,
	}, nil
}

func savePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func printStats(st stats) {
	p := message.NewPrinter(language.English)
	p.Printf("frames:          %d\n", st.frames)
	p.Printf("tiles:           %d (%d never painted)\n", st.tiles, st.stale)
	p.Printf("paints:          %d committed, %d without slot, %d discarded\n",
		st.sched.Painted, st.sched.Unreserved, st.sched.Discarded)
	p.Printf("renders:         %d calls, %d full, %d pixels\n",
		st.raster.Calls, st.raster.Full, st.raster.Pixels)
	p.Printf("texture pool:    %d slots, %d owned, %d steals\n",
		st.pool.Slots, st.pool.Owned, st.pool.Steals)
	p.Printf("quads drawn:     %d (%s sink, settled in %d passes)\n", st.quads, st.sink, st.settle)
	p.Printf("saved:           %s\n", st.filename)
}
