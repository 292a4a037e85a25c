package main

import (
	"os"

	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/yoraish/fishnerf/internal/fishnerf"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	app := cli.NewApp()
	app.Name = "fishnerf"
	app.Usage = "fit and render implicit volumes seen through a fisheye lens"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Value: "configs/main.yaml", Usage: "path to YAML or JSON config"},
		cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
		cli.BoolFlag{Name: "profile", Usage: "write a CPU profile to the working directory"},
	}
	app.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  "train",
			Usage: "fit the volume to the configured dataset",
			Action: func(c *cli.Context) error {
				if c.GlobalBool("profile") {
					defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
				}
				return fishnerf.Train(c.GlobalString("config"))
			},
		},
		{
			Name:  "render",
			Usage: "render a surround GIF from a trained checkpoint",
			Action: func(c *cli.Context) error {
				if c.GlobalBool("profile") {
					defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
				}
				return fishnerf.Render(c.GlobalString("config"))
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("fishnerf failed")
	}
}
