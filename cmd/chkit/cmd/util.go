package cmd

import (
	"os"

	"github.com/pseudomuto/chkit/pkg/chclient"
	"github.com/pseudomuto/chkit/pkg/config"
	"github.com/pseudomuto/chkit/pkg/consts"
	"github.com/pseudomuto/chkit/pkg/store"
)

// connectClickHouse opens a ClickHouse connection from cfg, returning
// chkerr.ErrMissingClickHouseConfig (via chclient.New) when no address is
// configured.
func connectClickHouse(cfg *config.Config) (*chclient.Client, error) {
	return chclient.New(chclient.Options{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
		Timeout:  cfg.Timeout(),
	})
}

// journalStore resolves the journal backing store per: when
// CHKIT_JOURNAL_TABLE is set and a live connection is available, the
// journal is stored in that ClickHouse table; otherwise it lives in
// metaDir/journal.json. conn may be nil when only the file-backed store is
// reachable (e.g. no ClickHouse config for this command).
func journalStore(cfg *config.Config, conn *chclient.Client) store.JournalStore {
	if table, set := os.LookupEnv(consts.JournalTableEnvVar); set && conn != nil {
		return store.NewDBJournalStore(conn, table)
	}
	return store.FileJournalStore{MetaDir: cfg.MetaDir}
}

// isInteractive reports whether stdin is a terminal, used to decide whether
// the destructive-execution gate may fall back to an interactive
// confirmation prompt.
func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
