package cli

import (
	"net/http"

	"github.com/roach88/gridsync/internal/backend"
	"github.com/roach88/gridsync/internal/config"
	"github.com/roach88/gridsync/internal/dataset"
	"github.com/roach88/gridsync/internal/persist"
	"github.com/roach88/gridsync/internal/reconcile"
	"github.com/roach88/gridsync/internal/session"
	"github.com/roach88/gridsync/internal/store"
)

// workspace is everything one command needs to drive a dataset: a fresh
// session, the backend client and the orchestrator over them.
type workspace struct {
	dataset *dataset.Dataset
	session *session.Store
	client  *backend.Client
	orch    *reconcile.Orchestrator
	journal *store.Store
}

// openWorkspace loads the deployment config, resolves name and wires the
// orchestrator. Every failure is a command error.
func openWorkspace(opts *RootOptions, name string) (*workspace, error) {
	d, err := opts.Registry.Lookup(name)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "unknown dataset", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Check(opts.Registry.Names()); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	resolved, err := cfg.Resolve(d.Name)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	clientOpts := []backend.Option{
		backend.WithHTTPClient(&http.Client{Timeout: resolved.Timeout}),
		backend.WithLogger(opts.Logger),
	}
	for k, v := range resolved.Headers {
		clientOpts = append(clientOpts, backend.WithHeader(k, v))
	}
	client := backend.New(d, resolved.Endpoints, clientOpts...)

	sess, err := session.NewManager(nil).NewSession()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start session", err)
	}
	ws := &workspace{
		dataset: d,
		session: sess,
		client:  client,
	}

	orchOpts := []reconcile.Option{reconcile.WithLogger(opts.Logger)}
	if opts.JournalPath != "" {
		st, err := store.Open(opts.JournalPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		ws.journal = st
		orchOpts = append(orchOpts, reconcile.WithJournal(st))
	}

	gw := persist.NewGateway(client, d.Identity, persist.WithLogger(opts.Logger))
	ws.orch = reconcile.New(d, ws.session, client, gw, orchOpts...)
	return ws, nil
}

// Close releases the journal, if open.
func (w *workspace) Close() error {
	if w.journal == nil {
		return nil
	}
	return w.journal.Close()
}
