package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/wildfire-analyser/internal/adapter/blobstore"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/gcs"
	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	return tw
}

func printPlan(w io.Writer, a domain.Assessment, before, after domain.DateRange) {
	tw := newTable(w, "Field", "Value")
	tw.Append([]string{"request id", a.ID})
	tw.Append([]string{"region", fmt.Sprintf("%.2f ha", a.ROI.AreaHectares())})
	tw.Append([]string{"pre-fire window", before.String()})
	tw.Append([]string{"post-fire window", after.String()})
	tw.Append([]string{"mosaic strategy", string(a.Strategy)})
	tw.Append([]string{"cloud threshold", strconv.FormatFloat(a.CloudThreshold, 'f', -1, 64)})
	for _, k := range domain.ProductsFor(a.Deliverables) {
		tw.Append([]string{"product", k.Filename()})
	}
	tw.Render()
}

func printAreas(w io.Writer, areas domain.AreaBySeverity) {
	total := areas.Total()
	tw := newTable(w, "Class", "Severity", "Hectares", "Share")
	tw.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	for _, c := range domain.SeverityClasses {
		share := 0.0
		if total > 0 {
			share = areas[c] / total * 100
		}
		tw.Append([]string{
			strconv.Itoa(int(c)),
			c.String(),
			fmt.Sprintf("%.2f", areas[c]),
			fmt.Sprintf("%.1f%%", share),
		})
	}
	tw.SetFooter([]string{"", "burned", fmt.Sprintf("%.2f", areas.Burned()), ""})
	tw.Render()
}

func printTimings(w io.Writer, timings []domain.StageTiming) {
	tw := newTable(w, "Stage", "Duration")
	for _, t := range timings {
		tw.Append([]string{t.Stage, t.Duration.String()})
	}
	tw.Render()
}

func printProducts(w io.Writer, products []domain.StoredProduct) {
	tw := newTable(w, "Product", "Bytes", "URI", "Signed URL")
	tw.SetAutoWrapText(false)
	for _, p := range products {
		tw.Append([]string{string(p.Kind), strconv.FormatInt(p.Size, 10), p.URI, p.SignedURL})
	}
	tw.Render()
}

func printPolicy(w io.Writer, s gcs.PolicyStatus) {
	tw := newTable(w, "Check", "Result")
	tw.Append([]string{"bucket", s.Bucket})
	tw.Append([]string{"deletes objects after 24h", strconv.FormatBool(s.LifecycleCompliant)})
	for _, r := range s.LifecycleRules {
		tw.Append([]string{"lifecycle rule", r})
	}
	for _, p := range s.GrantedPermissions {
		tw.Append([]string{"granted", p})
	}
	for _, p := range s.MissingPermissions {
		tw.Append([]string{"missing", p})
	}
	tw.Render()
}

func printObjects(w io.Writer, objs []blobstore.ObjectInfo) {
	tw := newTable(w, "Key", "Bytes", "Modified")
	for _, o := range objs {
		tw.Append([]string{o.Key, strconv.FormatInt(o.Size, 10), o.ModTime.UTC().Format("2006-01-02 15:04:05")})
	}
	tw.Render()
}
