// Command groupfix rewrites legacy group labels left behind by earlier data
// imports. It is a one-shot maintenance tool: run it once against a database
// restored from an old dump, then forget about it.
package main

import (
	"github.com/rs/zerolog/log"

	"github.com/mlavigne/notify-api/internal/config"
	"github.com/mlavigne/notify-api/internal/repository/postgres"
)

// Legacy labels and what they became. "Réseau" users were folded into
// Enfance when the group was retired; "Uncategorized" was never a real
// group and maps to no group at all.
var renames = map[string]string{
	"Enfence": "Enfance",
	"Réseau":  "Enfance",
}

var retired = []string{"Uncategorized", "none"}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	for from, to := range renames {
		res, err := db.Exec(`UPDATE users SET group_name = $1, updated_at = now() WHERE group_name = $2`, to, from)
		if err != nil {
			log.Fatal().Err(err).Str("from", from).Msg("rename failed")
		}
		n, _ := res.RowsAffected()
		log.Info().Str("from", from).Str("to", to).Int64("users", n).Msg("renamed group label")

		res, err = db.Exec(`UPDATE notifications SET target_groups = array_replace(target_groups, $2, $1), updated_at = now() WHERE $2 = ANY(target_groups)`, to, from)
		if err != nil {
			log.Fatal().Err(err).Str("from", from).Msg("target rewrite failed")
		}
		n, _ = res.RowsAffected()
		log.Info().Str("from", from).Str("to", to).Int64("notifications", n).Msg("rewrote target groups")
	}

	for _, label := range retired {
		res, err := db.Exec(`UPDATE users SET group_name = NULL, updated_at = now() WHERE group_name = $1`, label)
		if err != nil {
			log.Fatal().Err(err).Str("label", label).Msg("clear failed")
		}
		n, _ := res.RowsAffected()
		log.Info().Str("label", label).Int64("users", n).Msg("cleared retired group label")

		res, err = db.Exec(`UPDATE notifications SET target_groups = array_remove(target_groups, $1), updated_at = now() WHERE $1 = ANY(target_groups)`, label)
		if err != nil {
			log.Fatal().Err(err).Str("label", label).Msg("target removal failed")
		}
		n, _ = res.RowsAffected()
		log.Info().Str("label", label).Int64("notifications", n).Msg("removed retired target group")
	}

	log.Info().Msg("group labels normalized")
}
