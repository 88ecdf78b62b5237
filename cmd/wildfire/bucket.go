package main

import (
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/blobstore"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/gcs"
	"github.com/couchcryptid/wildfire-analyser/internal/config"
	"github.com/urfave/cli/v2"
)

func bucketCommand() *cli.Command {
	return &cli.Command{
		Name:  "bucket",
		Usage: "inspect and maintain the product bucket",
		Subcommands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "verify the 24h expiry rule and write permissions",
				Action: bucketCheckAction,
			},
			{
				Name:   "ensure-lifecycle",
				Usage:  "add the 24h expiry rule if it is missing",
				Action: bucketEnsureAction,
			},
			{
				Name:  "ls",
				Usage: "list stored products",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Value: "assessments/", Usage: "key `PREFIX` to list"},
				},
				Action: bucketListAction,
			},
		},
	}
}

// withPolicy runs fn against the configured bucket.
func withPolicy(c *cli.Context, fn func(*gcs.BucketPolicy) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client, err := storage.NewClient(c.Context)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()
	return fn(gcs.NewBucketPolicy(client, cfg.GCPBucketName))
}

func bucketCheckAction(c *cli.Context) error {
	return withPolicy(c, func(p *gcs.BucketPolicy) error {
		status, err := p.Check(c.Context)
		if err != nil {
			return err
		}
		printPolicy(c.App.Writer, status)
		if !status.OK() {
			return cli.Exit("bucket policy violated", 1)
		}
		return nil
	})
}

func bucketEnsureAction(c *cli.Context) error {
	return withPolicy(c, func(p *gcs.BucketPolicy) error {
		added, err := p.EnsureLifecycle(c.Context)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(c.App.Writer, "added expiry rule to gs://%s\n", p.Name())
		} else {
			fmt.Fprintf(c.App.Writer, "gs://%s already expires objects after 24h\n", p.Name())
		}
		return nil
	})
}

func bucketListAction(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := blobstore.Open(c.Context, cfg.StoreURL, 0)
	if err != nil {
		return err
	}
	defer store.Close()

	objs, err := store.List(c.Context, c.String("prefix"))
	if err != nil {
		return err
	}
	printObjects(c.App.Writer, objs)
	return nil
}
