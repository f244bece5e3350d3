package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/msomdec/typing-exam/internal/config"
	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/practice"
	"github.com/msomdec/typing-exam/internal/repository/sqlite"
	"github.com/msomdec/typing-exam/internal/service"
	"github.com/msomdec/typing-exam/internal/textcheck"
)

const samplePassage = "The quick brown fox jumps over the lazy dog. Practice makes progress, so keep your eyes on the text and your hands on the keys."

var (
	adminEmail    string
	adminName     string
	adminPassword string

	contentFile       string
	contentDifficulty string

	practiceFile    string
	practiceSeconds int
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typing-exam",
		Short:         "Proctored typing speed test",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newStudentsCmd())
	rootCmd.AddCommand(newContentCmd())
	rootCmd.AddCommand(newTimeLimitCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newPracticeCmd())

	return rootCmd
}

// withDB loads the configuration, opens the migrated database and runs fn.
func withDB(fn func(ctx context.Context, cfg config.Config, db *sqlite.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(context.Background(), cfg, db)
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := adminPassword
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			return withDB(func(ctx context.Context, cfg config.Config, db *sqlite.DB) error {
				auth := service.NewAuthService(db.Admins(), cfg.JWTSecret, cfg.BcryptCost)
				admin, err := auth.CreateAdmin(ctx, strings.TrimSpace(adminEmail), strings.TrimSpace(adminName), password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (#%d)\n", admin.Email, admin.ID)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&adminEmail, "email", "", "admin email address")
	createCmd.Flags().StringVar(&adminName, "name", "", "display name")
	createCmd.Flags().StringVar(&adminPassword, "password", "", "password (default: $ADMIN_PASSWORD)")
	createCmd.MarkFlagRequired("email")
	createCmd.MarkFlagRequired("name")

	cmd.AddCommand(createCmd)
	return cmd
}

func newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage students",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import students from a CSV file with name,applicationNumber,dob columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			return withDB(func(ctx context.Context, cfg config.Config, db *sqlite.DB) error {
				sessions := service.NewSessionService(db.Sessions(), cfg.SessionTTL)
				students := service.NewStudentService(db.Students(), sessions, cfg.BcryptCost)
				rep, err := students.Import(ctx, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Import finished: %d added, %d skipped.\n", rep.Added, rep.Skipped)
				return nil
			})
		},
	})
	return cmd
}

func newContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage the test paragraph",
	}

	setCmd := &cobra.Command{
		Use:   "set [text]",
		Short: "Publish a new active paragraph from an argument, a file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readPassage(cmd.InOrStdin(), args, contentFile)
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, _ config.Config, db *sqlite.DB) error {
				contents := service.NewContentService(db.Contents(), db.Settings())
				c, err := contents.Publish(ctx, text, contentDifficulty)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paragraph #%d is now the active test (%s, %d characters).\n",
					c.ID, c.Difficulty, len([]rune(c.Text)))
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&contentFile, "file", "", "read the paragraph from a file (- for stdin)")
	setCmd.Flags().StringVar(&contentDifficulty, "difficulty", domain.DefaultDifficulty, "easy, medium, or hard")

	cmd.AddCommand(setCmd)
	return cmd
}

func readPassage(stdin io.Reader, args []string, path string) (string, error) {
	switch {
	case len(args) == 1 && path != "":
		return "", errors.New("pass the paragraph as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case path == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}
	return "", errors.New("no paragraph given")
}

func newTimeLimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time-limit",
		Short: "Manage the test duration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <seconds>",
		Short: "Set the duration of tests opened from now on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid seconds %q", args[0])
			}
			return withDB(func(ctx context.Context, _ config.Config, db *sqlite.DB) error {
				contents := service.NewContentService(db.Contents(), db.Settings())
				if err := contents.SetTimeLimit(ctx, seconds); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Time limit set to %d seconds.\n", seconds)
				return nil
			})
		},
	})
	return cmd
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
)

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Print every recorded attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(ctx context.Context, _ config.Config, db *sqlite.DB) error {
				rows, err := db.Attempts().List(ctx)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No results recorded yet.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), resultsTable(rows))
				return nil
			})
		},
	}
}

func resultsTable(rows []domain.AttemptRow) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.ApplicationNumber,
			r.StudentName,
			strconv.FormatInt(r.ContentID, 10),
			strconv.Itoa(r.WPM),
			strconv.Itoa(r.Accuracy) + "%",
			fmt.Sprintf("%d/%d", r.Symbols, r.OriginalLength),
			strconv.Itoa(r.Seconds) + "s",
			r.SubmittedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Application", "Name", "Paragraph", "WPM", "Accuracy", "Chars", "Time", "Submitted").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 2 && col <= 6:
				return numberStyle
			}
			return cellStyle
		}).
		String()
}

func newPracticeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Rehearse the test in the terminal without recording a result",
		Args:  cobra.NoArgs,
		RunE:  runPracticeCmd,
	}
	cmd.Flags().StringVar(&practiceFile, "file", "", "practice on the paragraph in this file instead of the active one")
	cmd.Flags().IntVar(&practiceSeconds, "seconds", 0, "countdown length (default: the configured time limit)")
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	text, seconds, err := practiceSource(practiceFile)
	if err != nil {
		return err
	}
	if practiceSeconds > 0 {
		seconds = practiceSeconds
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("practice paragraph is empty")
	}
	if res := textcheck.Validate(text); !res.Valid {
		return fmt.Errorf("practice paragraph contains unsupported characters: %s", res.Describe())
	}

	m := practice.NewModel(text, seconds, nil)
	defer m.Close()
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run practice: %w", err)
	}
	return nil
}

// practiceSource returns the paragraph and duration to practice with: the
// file when given, otherwise the active paragraph, otherwise a sample.
func practiceSource(path string) (string, int, error) {
	var (
		text    string
		seconds = domain.DefaultTimeLimitSeconds
	)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", 0, fmt.Errorf("read %s: %w", path, err)
		}
		text = string(data)
	}

	err := withDB(func(ctx context.Context, _ config.Config, db *sqlite.DB) error {
		contents := service.NewContentService(db.Contents(), db.Settings())
		limit, err := contents.TimeLimit(ctx)
		if err != nil {
			return err
		}
		seconds = limit.DurationSeconds
		if text != "" {
			return nil
		}
		active, err := contents.ActiveContent(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			text = samplePassage
			return nil
		}
		if err != nil {
			return err
		}
		text = active.Text
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return text, seconds, nil
}
