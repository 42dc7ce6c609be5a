package migrations

func init() {
	Migrations.MustRegister(
		execFile("create_leaderboard.up.sql"),
		execFile("create_leaderboard.down.sql"),
	)
}
