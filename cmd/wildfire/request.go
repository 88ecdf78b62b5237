package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/urfave/cli/v2"
)

// requestFromFlags builds a request from --request, overridden by any
// explicitly set flag.
func requestFromFlags(c *cli.Context) (domain.AssessmentRequest, error) {
	var req domain.AssessmentRequest

	if path := c.String("request"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("read request file: %w", err)
		}
		if req, err = domain.ParseRequestFile(data); err != nil {
			return req, err
		}
		// Region paths in a request file are relative to the file.
		if req.GeoJSONPath != "" && !filepath.IsAbs(req.GeoJSONPath) {
			req.GeoJSONPath = filepath.Join(filepath.Dir(path), req.GeoJSONPath)
		}
	}

	if c.IsSet("geojson") {
		req.GeoJSON = nil
		req.GeoJSONPath = c.String("geojson")
	}
	if c.IsSet("start") {
		req.StartDate = c.String("start")
	}
	if c.IsSet("end") {
		req.EndDate = c.String("end")
	}
	if c.IsSet("deliverable") {
		req.Deliverables = c.StringSlice("deliverable")
	}
	if c.IsSet("strategy") {
		req.MosaicStrategy = c.String("strategy")
	}
	if c.IsSet("cloud-threshold") {
		req.CloudThreshold = domain.Float64(c.Float64("cloud-threshold"))
	}
	return req, nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "check a request and show what an assessment would do",
		Flags:  requestFlags(),
		Action: validateAction,
	}
}

func validateAction(c *cli.Context) error {
	req, err := requestFromFlags(c)
	if err != nil {
		return err
	}
	a, err := req.Validate()
	if err != nil {
		return cli.Exit(err, 2)
	}
	before, after := domain.ExpandDates(a.Start, a.End, c.Int("window-days"))
	printPlan(c.App.Writer, a, before, after)
	return nil
}
