package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"baf-site/internal/cms"
	"baf-site/internal/session"
)

// adminRun is a subcommand body that runs with the token saved by `bafsite login`.
type adminRun func(cmd *cobra.Command, a *app, token string, args []string) error

func withSession(cfgPath *string, run adminRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup(*cfgPath)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		s, err := session.Load(a.cfg.Session.StatePath)
		if err != nil {
			return fmt.Errorf("load session (run `bafsite login` first): %w", err)
		}
		tok := s.Token()
		if tok == "" {
			return fmt.Errorf("saved session expired, log in again: %w", cms.ErrUnauthorized)
		}
		return run(cmd, a, tok, args)
	}
}

// openImage opens the file at path as an upload. An empty path means no image.
func openImage(path string) (*cms.Upload, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open image: %w", err)
	}
	return &cms.Upload{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

func newEventsCmd(cfgPath *string) *cobra.Command {
	var name, description, image string
	eventInput := func() (cms.EventInput, func(), error) {
		up, done, err := openImage(image)
		return cms.EventInput{Name: name, Description: description, Image: up}, done, err
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: withSession(cfgPath, func(cmd *cobra.Command, a *app, token string, _ []string) error {
			if name == "" {
				return errors.New("events create: --name is required")
			}
			in, done, err := eventInput()
			defer done()
			if err != nil {
				return err
			}
			ev, err := a.cms.CreateEvent(cmd.Context(), token, in)
			if err != nil {
				return fmt.Errorf("create event: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), ev)
		}),
	}
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Update an event",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(cfgPath, func(cmd *cobra.Command, a *app, token string, args []string) error {
			in, done, err := eventInput()
			defer done()
			if err != nil {
				return err
			}
			ev, err := a.cms.UpdateEvent(cmd.Context(), token, args[0], in)
			if err != nil {
				return fmt.Errorf("update event: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), ev)
		}),
	}
	for _, c := range []*cobra.Command{create, update} {
		c.Flags().StringVar(&name, "name", "", "Event name")
		c.Flags().StringVar(&description, "description", "", "Event description")
		c.Flags().StringVar(&image, "image", "", "Path to the event image")
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(cfgPath, func(cmd *cobra.Command, a *app, token string, args []string) error {
			if err := a.cms.DeleteEvent(cmd.Context(), token, args[0]); err != nil {
				return fmt.Errorf("delete event: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted event %s\n", args[0])
			return nil
		}),
	}

	cmd := &cobra.Command{Use: "events", Short: "Manage events with the saved admin session"}
	cmd.AddCommand(create, update, del)
	return cmd
}

func newBrandsCmd(cfgPath *string) *cobra.Command {
	var title, slug, image string
	brandInput := func() (cms.BrandInput, func(), error) {
		up, done, err := openImage(image)
		return cms.BrandInput{Title: title, Slug: slug, Image: up}, done, err
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a brand",
		Args:  cobra.NoArgs,
		RunE: withSession(cfgPath, func(cmd *cobra.Command, a *app, token string, _ []string) error {
			if title == "" {
				return errors.New("brands create: --title is required")
			}
			in, done, err := brandInput()
			defer done()
			if err != nil {
				return err
			}
			b, err := a.cms.CreateBrand(cmd.Context(), token, in)
			if err != nil {
				return fmt.Errorf("create brand: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), b)
		}),
	}
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Update a brand",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(cfgPath, func(cmd *cobra.Command, a *app, token string, args []string) error {
			in, done, err := brandInput()
			defer done()
			if err != nil {
				return err
			}
			b, err := a.cms.UpdateBrand(cmd.Context(), token, args[0], in)
			if err != nil {
				return fmt.Errorf("update brand: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), b)
		}),
	}
	for _, c := range []*cobra.Command{create, update} {
		c.Flags().StringVar(&title, "title", "", "Brand title")
		c.Flags().StringVar(&slug, "slug", "", "URL slug (derived from the title when empty)")
		c.Flags().StringVar(&image, "image", "", "Path to the brand image")
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a brand",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(cfgPath, func(cmd *cobra.Command, a *app, token string, args []string) error {
			if err := a.cms.DeleteBrand(cmd.Context(), token, args[0]); err != nil {
				return fmt.Errorf("delete brand: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted brand %s\n", args[0])
			return nil
		}),
	}

	cmd := &cobra.Command{Use: "brands", Short: "Manage brands with the saved admin session"}
	cmd.AddCommand(create, update, del)
	return cmd
}

func newAboutCmd(cfgPath *string) *cobra.Command {
	var id, desc1, desc2, image string
	set := &cobra.Command{
		Use:   "set",
		Short: "Create the about section, or update it when --id is given",
		Args:  cobra.NoArgs,
		RunE: withSession(cfgPath, func(cmd *cobra.Command, a *app, token string, _ []string) error {
			up, done, err := openImage(image)
			defer done()
			if err != nil {
				return err
			}
			about, err := a.cms.SaveAbout(cmd.Context(), token, id, cms.AboutInput{
				Description1: desc1,
				Description2: desc2,
				Image:        up,
			})
			if err != nil {
				return fmt.Errorf("save about: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), about)
		}),
	}
	set.Flags().StringVar(&id, "id", "", "Existing about document id")
	set.Flags().StringVar(&desc1, "description1", "", "First paragraph")
	set.Flags().StringVar(&desc2, "description2", "", "Second paragraph")
	set.Flags().StringVar(&image, "image", "", "Path to the about image")

	cmd := &cobra.Command{Use: "about", Short: "Edit the about section with the saved admin session"}
	cmd.AddCommand(set)
	return cmd
}
