// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wopr-net/wopr/internal/storage/postgres"
	"github.com/wopr-net/wopr/pkg/plugin"
)

// setupPostgres starts a PostgreSQL container, applies the host
// migrations, and connects a store to it.
func setupPostgres() (*postgres.Store, string, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("wopr_test"),
		tcpostgres.WithUsername("wopr"),
		tcpostgres.WithPassword("wopr"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}

	migrator, err := postgres.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}
	if err := migrator.Close(); err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}

	store, err := postgres.Connect(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}

	cleanup := func() {
		store.Close()
		_ = container.Terminate(ctx)
	}

	return store, connStr, cleanup, nil
}

func messagesSchema(version string) plugin.Schema {
	return plugin.Schema{
		Namespace: "echo",
		Version:   version,
		Tables: []plugin.TableSchema{{
			Name:       "messages",
			PrimaryKey: "id",
			Indexes:    []string{"session_id"},
			Fields: []plugin.StorageField{
				{Name: "id", Type: plugin.StorageString},
				{Name: "session_id", Type: plugin.StorageString},
				{Name: "content", Type: plugin.StorageString},
				{Name: "pins", Type: plugin.StorageInteger},
				{Name: "archived", Type: plugin.StorageBoolean},
			},
		}},
	}
}

var _ = Describe("Postgres storage", func() {
	var (
		store   *postgres.Store
		connStr string
		cleanup func()
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		store, connStr, cleanup, err = setupPostgres()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Migrator", func() {
		It("creates the host meta tables", func() {
			api := postgres.NewAPI(store, "echo")
			rows, err := api.Raw(ctx,
				`SELECT table_name FROM information_schema.tables
				 WHERE table_name IN ('wopr_plugin_schemas', 'wopr_plugin_config')`)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
		})

		It("reports the applied version and tolerates repeated Up", func() {
			migrator, err := postgres.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			defer migrator.Close()

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeNumerically(">=", uint(1)))
			Expect(dirty).To(BeFalse())

			// setupPostgres ran Up already; a second Up is a no-op.
			Expect(migrator.Up()).To(Succeed())
		})
	})

	Describe("Register", func() {
		It("creates plugin tables and exposes collections", func() {
			api := postgres.NewAPI(store, "echo")
			Expect(api.Register(ctx, messagesSchema("1.0.0"))).To(Succeed())

			coll, err := api.Collection("messages")
			Expect(err).NotTo(HaveOccurred())
			Expect(coll).NotTo(BeNil())

			_, err = api.Collection("ghost")
			Expect(err).To(MatchError(plugin.ErrUnknownTable))
		})

		It("is idempotent for the same version", func() {
			api := postgres.NewAPI(store, "echo")
			Expect(api.Register(ctx, messagesSchema("1.0.0"))).To(Succeed())
			Expect(api.Register(ctx, messagesSchema("1.0.0"))).To(Succeed())
		})

		It("runs plugin migrations on version bumps", func() {
			api := postgres.NewAPI(store, "echo")
			Expect(api.Register(ctx, messagesSchema("1.0.0"))).To(Succeed())

			coll, err := api.Collection("messages")
			Expect(err).NotTo(HaveOccurred())
			_, err = coll.Insert(ctx, plugin.Document{
				"id": "m1", "session_id": "s1", "content": "old", "pins": 0, "archived": false,
			})
			Expect(err).NotTo(HaveOccurred())

			bumped := messagesSchema("1.1.0")
			var gotFrom, gotTo string
			bumped.Migrate = func(ctx context.Context, from, to string, h plugin.StorageHandle) error {
				gotFrom, gotTo = from, to
				_, execErr := h.Exec(ctx,
					`UPDATE p_echo__messages SET doc = jsonb_set(doc, '{content}', '"migrated"')`)
				return execErr
			}
			Expect(api.Register(ctx, bumped)).To(Succeed())
			Expect(gotFrom).To(Equal("1.0.0"))
			Expect(gotTo).To(Equal("1.1.0"))

			doc, err := coll.FindByID(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc["content"]).To(Equal("migrated"))
		})

		It("rejects version downgrades", func() {
			api := postgres.NewAPI(store, "echo")
			Expect(api.Register(ctx, messagesSchema("2.0.0"))).To(Succeed())

			err := api.Register(ctx, messagesSchema("1.0.0"))
			Expect(err).To(MatchError(plugin.ErrSchemaDowngrade))
		})

		It("rolls back when a plugin migration fails", func() {
			api := postgres.NewAPI(store, "echo")
			Expect(api.Register(ctx, messagesSchema("1.0.0"))).To(Succeed())

			bumped := messagesSchema("1.1.0")
			bumped.Migrate = func(ctx context.Context, from, to string, h plugin.StorageHandle) error {
				return errors.New("migration exploded")
			}
			Expect(api.Register(ctx, bumped)).NotTo(Succeed())

			// Stored version is unchanged.
			rows, err := api.Raw(ctx,
				`SELECT version FROM wopr_plugin_schemas WHERE namespace = $1`, "echo")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0]["version"]).To(Equal("1.0.0"))
		})
	})

	Describe("Collection", func() {
		var coll plugin.Collection

		BeforeEach(func() {
			api := postgres.NewAPI(store, "echo")
			Expect(api.Register(ctx, messagesSchema("1.0.0"))).To(Succeed())
			var err error
			coll, err = api.Collection("messages")
			Expect(err).NotTo(HaveOccurred())
		})

		It("round-trips documents", func() {
			stored, err := coll.Insert(ctx, plugin.Document{
				"session_id": "s1", "content": "hello", "pins": 2, "archived": false,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored["id"]).NotTo(BeEmpty())

			id, ok := stored["id"].(string)
			Expect(ok).To(BeTrue())

			found, err := coll.FindByID(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(found["content"]).To(Equal("hello"))

			Expect(coll.Update(ctx, id, plugin.Document{"content": "edited"})).To(Succeed())
			found, err = coll.FindByID(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(found["content"]).To(Equal("edited"))

			existed, err := coll.Delete(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeTrue())

			found, err = coll.FindByID(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())
		})

		It("rejects duplicate primary keys", func() {
			_, err := coll.Insert(ctx, plugin.Document{"id": "dup", "content": "one"})
			Expect(err).NotTo(HaveOccurred())
			_, err = coll.Insert(ctx, plugin.Document{"id": "dup", "content": "two"})
			Expect(err).To(HaveOccurred())
		})

		It("filters with FindMany", func() {
			for _, d := range []plugin.Document{
				{"id": "a", "session_id": "s1", "archived": true},
				{"id": "b", "session_id": "s1", "archived": false},
				{"id": "c", "session_id": "s2", "archived": true},
			} {
				_, err := coll.Insert(ctx, d)
				Expect(err).NotTo(HaveOccurred())
			}

			docs, err := coll.FindMany(ctx, plugin.Filter{"session_id": "s1", "archived": true})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0]["id"]).To(Equal("a"))
		})

		It("evaluates typed query predicates", func() {
			for i, id := range []string{"q1", "q2", "q3"} {
				_, err := coll.Insert(ctx, plugin.Document{
					"id": id, "session_id": "s1", "pins": i * 5,
				})
				Expect(err).NotTo(HaveOccurred())
			}

			docs, err := coll.Query().
				Where("pins", plugin.OpGt, 0).
				OrderBy("pins", true).
				Execute(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0]["id"]).To(Equal("q3"))
			Expect(docs[1]["id"]).To(Equal("q2"))

			count, err := coll.Query().Where("pins", plugin.OpLte, 5).Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})
	})

	Describe("Transaction", func() {
		var (
			api  plugin.StorageAPI
			coll plugin.Collection
		)

		BeforeEach(func() {
			a := postgres.NewAPI(store, "echo")
			Expect(a.Register(ctx, messagesSchema("1.0.0"))).To(Succeed())
			var err error
			coll, err = a.Collection("messages")
			Expect(err).NotTo(HaveOccurred())
			api = a
		})

		It("commits all operations together", func() {
			err := api.Transaction(ctx, func(ctx context.Context) error {
				if _, err := coll.Insert(ctx, plugin.Document{"id": "t1"}); err != nil {
					return err
				}
				_, err := coll.Insert(ctx, plugin.Document{"id": "t2"})
				return err
			})
			Expect(err).NotTo(HaveOccurred())

			docs, err := coll.FindMany(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})

		It("rolls back all operations on error", func() {
			err := api.Transaction(ctx, func(ctx context.Context) error {
				if _, err := coll.Insert(ctx, plugin.Document{"id": "t1"}); err != nil {
					return err
				}
				return errors.New("abort")
			})
			Expect(err).To(HaveOccurred())

			docs, err := coll.FindMany(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})
	})

	Describe("ConfigStore", func() {
		It("persists and reloads per-plugin values", func() {
			cs := postgres.NewConfigStore(store)

			Expect(cs.Save(ctx, "echo", "greeting", "howdy")).To(Succeed())
			Expect(cs.Save(ctx, "echo", "max_items", float64(25))).To(Succeed())
			Expect(cs.Save(ctx, "other", "greeting", "yo")).To(Succeed())

			values, err := cs.Load(ctx, "echo")
			Expect(err).NotTo(HaveOccurred())
			Expect(values).To(HaveKeyWithValue("greeting", "howdy"))
			Expect(values).To(HaveKeyWithValue("max_items", float64(25)))
			Expect(values).NotTo(HaveKey("yo"))
		})

		It("overwrites on re-save", func() {
			cs := postgres.NewConfigStore(store)
			Expect(cs.Save(ctx, "echo", "greeting", "howdy")).To(Succeed())
			Expect(cs.Save(ctx, "echo", "greeting", "hello")).To(Succeed())

			values, err := cs.Load(ctx, "echo")
			Expect(err).NotTo(HaveOccurred())
			Expect(values).To(HaveKeyWithValue("greeting", "hello"))
		})
	})
})
