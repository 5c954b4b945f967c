package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/go-kanban/internal/client"
	"github.com/chepyr/go-kanban/internal/config"
	"github.com/chepyr/go-kanban/internal/kanban"
	"github.com/chepyr/go-kanban/internal/persist"
	"github.com/chepyr/go-kanban/internal/snapshot"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

var errNotSignedIn = errors.New("not signed in, run `kanban login` first")

// app carries what every command needs, resolved lazily in PersistentPreRunE.
type app struct {
	cfgPath string
	cfg     config.Config
	// objects overrides the S3 client built from the config.
	objects snapshot.ObjectAPI
}

func newRootCmd() *cobra.Command {
	return (&app{}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kanban",
		Short:         "Kanban boards from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.DefaultPath(), "config file")

	root.AddCommand(
		a.registerCmd(), a.loginCmd(), a.whoamiCmd(), a.logoutCmd(),
		a.boardsCmd(), a.boardCmd(), a.showCmd(), a.exportCmd(),
		a.listCmd(), a.cardCmd(), a.moveCmd(),
	)
	return root
}

func (a *app) auth() *client.Auth {
	return client.NewAuth(a.cfg.AuthURL)
}

// store returns a board-service client authenticated with the stored token.
func (a *app) store() (*client.Store, client.Session, error) {
	sess, err := client.LoadSession(a.cfg.TokenFile)
	if errors.Is(err, client.ErrNoSession) {
		return nil, client.Session{}, errNotSignedIn
	}
	if err != nil {
		return nil, client.Session{}, err
	}
	return client.NewStore(a.cfg.BoardsURL, client.WithToken(sess.Token)), sess, nil
}

func (a *app) session() (*kanban.Session, error) {
	st, sess, err := a.store()
	if err != nil {
		return nil, err
	}
	return kanban.New(st, sess.UserID,
		kanban.WithSyncOptions(persist.WithConcurrency(a.cfg.UpdateConcurrency))), nil
}

// openBoard opens a session and loads the board named by ref, a board id,
// a unique id prefix or a title.
func (a *app) openBoard(ctx context.Context, ref string) (*kanban.Session, models.Board, error) {
	s, err := a.session()
	if err != nil {
		return nil, models.Board{}, err
	}
	boards, err := s.Boards(ctx)
	if err != nil {
		return nil, models.Board{}, err
	}
	b, err := findBoard(boards, ref)
	if err != nil {
		return nil, models.Board{}, err
	}
	if err := s.SelectBoard(ctx, b.ID); err != nil {
		return nil, models.Board{}, err
	}
	return s, b, nil
}

var errNoBucket = errors.New("no s3 bucket configured")

// snapshots returns the configured snapshot bucket.
func (a *app) snapshots(ctx context.Context) (*snapshot.S3Store, error) {
	if !a.cfg.S3.Enabled() {
		return nil, errNoBucket
	}
	api := a.objects
	if api == nil {
		c, err := snapshot.NewS3Client(ctx, a.cfg.S3)
		if err != nil {
			return nil, err
		}
		api = c
	}
	objects := snapshot.NewS3Store(api, a.cfg.S3.Bucket)
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return objects, nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}
