package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	get "github.com/hashicorp/go-getter"
	"github.com/klauspost/compress/zlib"
	"github.com/urfave/cli/v2"

	"github.com/OCharnyshevich/voxel-world/pkg/world"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	app := &cli.App{
		Name:  "worldtool",
		Usage: "inspect and export chunk column payloads",
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "download payload fixtures from a URL or git source",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Required: true, Usage: "go-getter source, e.g. git::https://host/repo.git//fixtures"},
					&cli.StringFlag{Name: "o", Value: "./fixtures", Usage: "output directory"},
				},
				Action: func(c *cli.Context) error {
					dst := c.String("o")
					log.Info("downloading fixtures", "url", c.String("url"), "dst", dst)
					if err := get.Get(dst, c.String("url")); err != nil {
						return fmt.Errorf("fetch fixtures: %w", err)
					}
					log.Info("done", "dst", dst)
					return nil
				},
			},
			{
				Name:      "inspect",
				Usage:     "parse a payload file and print per-section stats",
				ArgsUsage: "<payload file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "z", Usage: "payload is zlib-compressed"},
					&cli.IntFlag{Name: "min-y", Value: -64, Usage: "lowest block Y of the profile"},
					&cli.IntFlag{Name: "sections", Value: 24, Usage: "section count of the profile"},
				},
				Action: func(c *cli.Context) error {
					sections, profile, err := loadSections(c)
					if err != nil {
						return err
					}
					for sy, sec := range sections {
						minY := profile.MinY + int32(sy)*16
						if sec == nil {
							fmt.Printf("section %2d (y %4d..%4d): empty\n", sy, minY, minY+15)
							continue
						}
						fmt.Printf("section %2d (y %4d..%4d): blocks bpe=%d palette=%d solid=%d, biomes bpe=%d palette=%d\n",
							sy, minY, minY+15,
							sec.Blocks().BitsPerEntry(), sec.Blocks().PaletteLen(), sec.SolidCount(),
							sec.Biomes().BitsPerEntry(), sec.Biomes().PaletteLen())
					}
					return nil
				},
			},
			{
				Name:      "export",
				Usage:     "write one section's block states as 4096 little-endian uint32 values",
				ArgsUsage: "<payload file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "z", Usage: "payload is zlib-compressed"},
					&cli.IntFlag{Name: "min-y", Value: -64, Usage: "lowest block Y of the profile"},
					&cli.IntFlag{Name: "sections", Value: 24, Usage: "section count of the profile"},
					&cli.IntFlag{Name: "sy", Required: true, Usage: "section index to export"},
					&cli.StringFlag{Name: "o", Required: true, Usage: "output file"},
				},
				Action: func(c *cli.Context) error {
					data, err := readPayload(c)
					if err != nil {
						return err
					}
					w := world.NewWorld(profileFromFlags(c), log)
					if err := w.LoadColumn(0, 0, data); err != nil {
						return err
					}
					states, err := w.ExportSectionStates(0, 0, c.Int("sy"))
					if err != nil {
						return err
					}
					if states == nil {
						return fmt.Errorf("section %d is empty or out of range", c.Int("sy"))
					}
					if err := os.WriteFile(c.String("o"), states, 0o644); err != nil {
						return fmt.Errorf("write export: %w", err)
					}
					log.Info("exported section", "sy", c.Int("sy"), "file", c.String("o"), "bytes", len(states))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("worldtool failed", "error", err)
		os.Exit(1)
	}
}

func readPayload(c *cli.Context) ([]byte, error) {
	if c.NArg() == 0 {
		return nil, fmt.Errorf("need a payload file to work with")
	}
	data, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if c.Bool("z") {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open zlib payload: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("inflate payload: %w", err)
		}
	}
	return data, nil
}

func profileFromFlags(c *cli.Context) *world.Profile {
	profile := world.DefaultProfile()
	profile.MinY = int32(c.Int("min-y"))
	profile.SectionCount = c.Int("sections")
	return profile
}

func loadSections(c *cli.Context) ([]*world.Section, *world.Profile, error) {
	data, err := readPayload(c)
	if err != nil {
		return nil, nil, err
	}
	profile := profileFromFlags(c)
	sections, err := world.ParseColumn(profile, data)
	if err != nil {
		return nil, nil, err
	}
	return sections, profile, nil
}
