package migrations

func init() {
	Migrations.MustRegister(
		execFile("create_puzzles.up.sql"),
		execFile("create_puzzles.down.sql"),
	)
}
