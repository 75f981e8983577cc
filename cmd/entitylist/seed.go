package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/entitylist/entitylist/internal/config"
	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/store"
)

// seedNamespace keeps generated ids stable so reseeding replaces rows instead
// of duplicating them.
var seedNamespace = uuid.MustParse("6f1c1a52-3f0e-4c55-9d0b-2a7d5e7f4c10")

var (
	seedSpace   string
	seedEnv     string
	seedUser    string
	seedEntries int
	seedAssets  int
)

var seedCmd = &cobra.Command{
	Use:         "seed",
	Short:       "Insert demo entries, assets and a space membership.",
	Args:        cobra.NoArgs,
	Annotations: structuredLogAnnotation(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedSpace, "space", "demo", "Space id")
	seedCmd.Flags().StringVar(&seedEnv, "env", "master", "Environment id")
	seedCmd.Flags().StringVar(&seedUser, "user", "demo-admin", "User id granted admin membership")
	seedCmd.Flags().IntVar(&seedEntries, "entries", 120, "Number of blog post entries")
	seedCmd.Flags().IntVar(&seedAssets, "assets", 30, "Number of assets")
}

func runSeed(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if seedEntries < 0 || seedAssets < 0 {
		return usageError(errors.New("--entries and --assets must not be negative"))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.UpsertMembership(ctx, store.Membership{SpaceID: seedSpace, UserID: seedUser, Admin: true}); err != nil {
		return err
	}

	now := time.Now().UTC()
	records := append(demoEntries(seedEntries, now), demoAssets(seedAssets, now)...)
	for _, e := range records {
		if err := st.Upsert(ctx, store.Record{
			SpaceID:       seedSpace,
			EnvironmentID: seedEnv,
			CreatedBy:     seedUser,
			Entity:        e,
		}); err != nil {
			return err
		}
	}

	slog.Info("seed complete",
		"space_id", seedSpace,
		"environment_id", seedEnv,
		"entries", seedEntries,
		"assets", seedAssets,
	)
	return nil
}

var demoCategories = []string{"news", "engineering", "product"}

func demoID(kind string, i int) string {
	return uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("%s-%d", kind, i))).String()
}

// demoEntries builds n blog posts spread over the last n hours with a mix of
// publishing states.
func demoEntries(n int, now time.Time) []entity.Entity {
	out := make([]entity.Entity, 0, n)
	for i := 0; i < n; i++ {
		created := now.Add(-time.Duration(n-i) * time.Hour)
		updated := created.Add(30 * time.Minute)
		e := entity.Entity{
			Sys: entity.Sys{
				ID:          demoID("post", i),
				Type:        entity.TypeEntry,
				ContentType: &entity.Link{ID: "post"},
				CreatedAt:   created,
				UpdatedAt:   updated,
			},
			Fields: map[string]any{
				"title":         fmt.Sprintf("Demo post %d", i+1),
				"slug":          fmt.Sprintf("demo-post-%d", i+1),
				"body":          "Lorem ipsum dolor sit amet.",
				"rating":        i % 6,
				"featured":      i%4 == 0,
				"category":      demoCategories[i%len(demoCategories)],
				"keywords":      []string{"demo", demoCategories[(i+1)%len(demoCategories)]},
				"publishDate":   created.Format("2006-01-02"),
				"internalNotes": "seeded",
			},
			Metadata: &entity.Metadata{Tags: []entity.Link{{ID: "demo"}}},
		}
		if i%3 != 0 {
			published := updated
			if i%5 == 0 {
				published = created.Add(10 * time.Minute)
			}
			e.Sys.PublishedAt = &published
		}
		if i%7 == 6 {
			archived := updated.Add(time.Hour)
			e.Sys.ArchivedAt = &archived
		}
		out = append(out, e)
	}
	return out
}

// demoAssets builds n assets; every fourth one has no file attached.
func demoAssets(n int, now time.Time) []entity.Entity {
	out := make([]entity.Entity, 0, n)
	for i := 0; i < n; i++ {
		created := now.Add(-time.Duration(n-i) * 2 * time.Hour)
		published := created.Add(5 * time.Minute)
		fields := map[string]any{
			"title": fmt.Sprintf("Demo image %d", i+1),
		}
		if i%4 != 3 {
			fields["file"] = map[string]any{
				"fileName":    fmt.Sprintf("demo-%d.png", i+1),
				"contentType": "image/png",
				"details":     map[string]any{"size": 1024 * (i + 1), "image": map[string]any{"width": 640, "height": 480}},
			}
		}
		out = append(out, entity.Entity{
			Sys: entity.Sys{
				ID:          demoID("asset", i),
				Type:        entity.TypeAsset,
				CreatedAt:   created,
				UpdatedAt:   published,
				PublishedAt: &published,
			},
			Fields: fields,
		})
	}
	return out
}
