package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/device"
	"github.com/weberc2/blockfs/pkg/inode"
	"github.com/weberc2/blockfs/pkg/types"
	"github.com/weberc2/blockfs/pkg/volume"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	config, err := LoadConfig()
	if err != nil {
		logrus.Fatalf("loading configuration: %v", err)
	}

	app := &cli.App{
		Name:  appName,
		Usage: "manage blockfs volume images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "image",
				Usage: "path to the volume image file",
				Value: config.Image,
			},
		},
		Commands: []*cli.Command{{
			Name:  "mkfs",
			Usage: "create and format a volume image",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:     "sectors",
					Usage:    "device size in sectors",
					Required: true,
				},
			},
			Action: func(ctx *cli.Context) error {
				dev, err := device.CreateFileDevice(
					ctx.String("image"),
					types.Sector(ctx.Uint("sectors")),
				)
				if err != nil {
					return err
				}
				defer dev.Close()

				vol, err := volume.Format(dev)
				if err != nil {
					return err
				}
				logrus.WithField("label", vol.Header.Label).
					WithField("sectors", vol.Header.Sectors).
					Infof("formatted volume")
				return nil
			},
		}, {
			Name:  "create",
			Usage: "create a new inode and print its sector number",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:  "length",
					Usage: "initial file length in bytes",
				},
			},
			Action: func(ctx *cli.Context) error {
				return withEngine(ctx, config, func(e *engine) error {
					sectors, ok := e.vol.FreeMap.AllocBatch(1)
					if !ok {
						return types.AllocationExhaustedErr
					}
					sector := sectors[0]
					if err := e.table.Create(
						sector,
						types.Byte(ctx.Uint("length")),
					); err != nil {
						e.vol.FreeMap.Release(sector, 1)
						return err
					}
					fmt.Println(sector)
					return nil
				})
			},
		}, {
			Name:  "write",
			Usage: "write stdin into an inode",
			Flags: []cli.Flag{
				&cli.UintFlag{Name: "inode", Required: true},
				&cli.UintFlag{Name: "offset"},
			},
			Action: func(ctx *cli.Context) error {
				return withEngine(ctx, config, func(e *engine) error {
					data, err := io.ReadAll(os.Stdin)
					if err != nil {
						return fmt.Errorf("reading stdin: %w", err)
					}
					h := e.table.Open(types.Sector(ctx.Uint("inode")))
					defer e.table.Close(h)
					n, err := e.table.WriteAt(
						h,
						data,
						types.Byte(ctx.Uint("offset")),
					)
					if err != nil {
						return err
					}
					logrus.WithField("bytes", n).Infof("wrote inode")
					return nil
				})
			},
		}, {
			Name:  "cat",
			Usage: "copy an inode's contents to stdout",
			Flags: []cli.Flag{
				&cli.UintFlag{Name: "inode", Required: true},
			},
			Action: func(ctx *cli.Context) error {
				return withEngine(ctx, config, func(e *engine) error {
					h := e.table.Open(types.Sector(ctx.Uint("inode")))
					defer e.table.Close(h)
					length, err := e.table.Length(h)
					if err != nil {
						return err
					}
					buf := make([]byte, length)
					if _, err := e.table.ReadAt(h, buf, 0); err != nil {
						return err
					}
					_, err = os.Stdout.Write(buf)
					return err
				})
			},
		}, {
			Name:  "remove",
			Usage: "mark an inode removed; its sectors are reclaimed " +
				"when the last opener closes",
			Flags: []cli.Flag{
				&cli.UintFlag{Name: "inode", Required: true},
			},
			Action: func(ctx *cli.Context) error {
				return withEngine(ctx, config, func(e *engine) error {
					h := e.table.Open(types.Sector(ctx.Uint("inode")))
					h.Remove()
					return e.table.Close(h)
				})
			},
		}, {
			Name:  "info",
			Usage: "print volume and inode details",
			Flags: []cli.Flag{
				&cli.UintFlag{Name: "inode"},
			},
			Action: func(ctx *cli.Context) error {
				return withEngine(ctx, config, func(e *engine) error {
					fmt.Printf("label:   %s\n", e.vol.Header.Label)
					fmt.Printf("sectors: %d\n", e.vol.Header.Sectors)
					fmt.Printf(
						"freemap: sectors %d-%d\n",
						e.vol.Header.FreeMapStart,
						e.vol.Header.FreeMapStart+
							e.vol.Header.FreeMapSectors-1,
					)
					if ctx.IsSet("inode") {
						h := e.table.Open(types.Sector(ctx.Uint("inode")))
						defer e.table.Close(h)
						length, err := e.table.Length(h)
						if err != nil {
							return err
						}
						fmt.Printf("inode %d: %d bytes in %d sectors\n",
							h.Sector(), length, inode.BlockCount(length))
					}
					return nil
				})
			},
		}, {
			Name:  "serve",
			Usage: "serve inode contents and cache statistics over HTTP",
			Action: func(ctx *cli.Context) error {
				return withEngine(ctx, config, func(e *engine) error {
					return serve(config.Addr, e)
				})
			},
		}},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// engine is the assembled storage stack over one opened image.
type engine struct {
	dev   *device.FileDevice
	vol   *volume.Volume
	cache *cache.Cache
	table *inode.Table
}

func withEngine(
	ctx *cli.Context,
	config *Config,
	f func(*engine) error,
) error {
	image := ctx.String("image")
	if image == "" {
		return fmt.Errorf("no image configured (flag, env, or config file)")
	}

	dev, err := device.OpenFileDevice(image)
	if err != nil {
		return err
	}
	defer dev.Close()

	vol, err := volume.Load(dev)
	if err != nil {
		return err
	}

	e := &engine{
		dev: dev,
		vol: vol,
	}
	e.cache = cache.New(dev, config.CacheSlots)
	e.table = inode.NewTable(e.cache, vol.FreeMap)

	if err := f(e); err != nil {
		return err
	}

	if err := e.cache.Flush(); err != nil {
		return err
	}
	return vol.FreeMap.Flush()
}
