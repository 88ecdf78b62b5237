// Command wildfire runs post-fire assessments from the command line and
// manages the product bucket.
package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env is normal; the environment may already be populated.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wildfire",
		Usage: "assess burn severity from Sentinel-2 imagery",
		Commands: []*cli.Command{
			assessCommand(),
			validateCommand(),
			bucketCommand(),
		},
	}
}

// requestFlags are shared by assess and validate.
func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "request", Aliases: []string{"r"}, Usage: "YAML or JSON request `FILE`"},
		&cli.StringFlag{Name: "geojson", Aliases: []string{"g"}, Usage: "GeoJSON `FILE` with the region of interest"},
		&cli.StringFlag{Name: "start", Usage: "fire start `DATE` (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end", Usage: "fire end `DATE` (YYYY-MM-DD)"},
		&cli.StringSliceFlag{Name: "deliverable", Aliases: []string{"d"}, Usage: "deliverable to render (repeatable)"},
		&cli.StringFlag{Name: "strategy", Usage: "mosaic strategy"},
		&cli.Float64Flag{Name: "cloud-threshold", Usage: "maximum scene cloud percentage (0, 100]"},
		&cli.IntFlag{Name: "window-days", Usage: "days searched before the start and after the end", EnvVars: []string{"ASSESSMENT_WINDOW_DAYS"}, Value: domain.DefaultWindowDays},
	}
}
