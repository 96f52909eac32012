package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/drivecast/internal/formatter"
	"github.com/urfave/cli/v3"
)

// folderFlags select a folder by public link and/or a slash-separated path of folder names.
func folderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "link",
			Aliases: []string{"l"},
			Usage:   "Shared folder link or ID to open without signing in",
		},
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "Folder names below the library root, e.g. \"Dune/Book 1\"",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and initialize the database",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the example configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the config file",
						Value: "~/.drivecast/config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "migrations",
				Usage:  "Show migration status",
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in to Google Drive",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in through the browser",
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and clear saved progress",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the sign-in state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"browse"},
		Usage:   "List a library folder",
		Flags: append(folderFlags(), &cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON",
		}),
		Action: r.Browse,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play an audio story, resuming the last session by default",
		Flags: append(folderFlags(),
			&cli.IntFlag{
				Name:    "item",
				Aliases: []string{"i"},
				Usage:   "Audio file to start from (1-based)",
				Value:   1,
			},
			&cli.StringFlag{
				Name:  "continue",
				Usage: "Story ID from history to resume",
			},
			&cli.FloatFlag{
				Name:  "speed",
				Usage: "Playback rate (0.5 - 3.0)",
			},
		),
		Action: r.Play,
	}
}

func readCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Read a text story, resuming the last chapter by default",
		Flags: append(folderFlags(),
			&cli.IntFlag{
				Name:    "chapter",
				Aliases: []string{"n"},
				Usage:   "Chapter to open (1-based)",
				Value:   1,
			},
			&cli.StringFlag{
				Name:  "continue",
				Usage: "Story ID from history to resume",
			},
			&cli.BoolFlag{
				Name:  "narrate",
				Usage: "Read the chapter aloud",
			},
		),
		Action: r.Read,
	}
}

func publicCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "public",
		Usage: "Open a shared folder link without signing in",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "link",
			},
		},
		Action: r.PublicOpen,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Manage saved story progress",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved stories, most recent first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "remove",
				Usage: "Forget a story",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.HistoryRemove,
			},
			{
				Name:  "export",
				Usage: "Export history to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   fmt.Sprintf("Export format (%s)", strings.Join(formatter.Formats, ", ")),
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: story_history.<ext>)",
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download a story for offline listening",
		Flags: append(folderFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Base output directory",
				Value:   "~/.drivecast/downloads",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent downloads (max 8)",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Requests per second",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Download files again even when a copy exists",
			},
			&cli.BoolFlag{
				Name:  "tag",
				Usage: "Write title and album tags into mp3 files",
				Value: true,
			},
		),
		Action: r.Download,
	}
}

// cacheCommand manages downloaded story files
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage downloaded stories",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the downloaded files of a story",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "story",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "clear",
				Usage: "Forget the downloads of a story",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "story",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "files",
						Usage: "Delete the downloaded files too",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// apiCommand handles direct Drive API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct Drive API calls",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET against the Drive v3 API, prints the response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Use the API key instead of the signed-in user",
					},
					&cli.BoolFlag{
						Name:  "compact",
						Usage: "Print JSON on one line",
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive player",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log file",
				Value: "~/.drivecast/drivecast-tui.log",
			},
		},
		Action: r.TUI,
	}
}
