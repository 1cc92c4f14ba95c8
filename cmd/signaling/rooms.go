package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mossy-p/burner-signaling/internal/models"
	"github.com/mossy-p/burner-signaling/internal/redis"
)

var flagRoomsJSON bool

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableRowStyle    = lipgloss.NewStyle().Padding(0, 1)
	tableRowAltStyle = tableRowStyle.Foreground(lipgloss.Color("245"))
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List live rooms from the Redis room directory",
	Long: `List the rooms a server has mirrored into Redis. Only summaries are shown:
passcodes and participant identities are never mirrored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig("")
		if err != nil {
			return err
		}
		if !cfg.Redis.Enabled {
			return errors.New("the room directory needs Redis: set REDIS_ENABLED=true or pass --redis")
		}

		rdb, err := redis.Connect(cmd.Context(), cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		summaries, err := redis.NewDirectory(rdb, "").List(cmd.Context())
		if err != nil {
			return err
		}
		if flagRoomsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}
		fmt.Println(roomTable(summaries, time.Now()))
		return nil
	},
}

func init() {
	roomsCmd.Flags().BoolVar(&flagRoomsJSON, "json", false, "Print summaries as JSON")
}

func roomTable(summaries []models.RoomSummary, now time.Time) string {
	if len(summaries) == 0 {
		return "No live rooms"
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		passcode := "no"
		if s.PasscodeRequired {
			passcode = "yes"
		}
		rows = append(rows, []string{
			s.RoomID,
			s.Kind,
			s.Status,
			strconv.Itoa(s.ParticipantCount) + "/" + strconv.Itoa(s.MaxParticipants),
			passcode,
			s.ExpiresAt.Sub(now).Round(time.Second).String(),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers("Room", "Kind", "Status", "Participants", "Passcode", "Expires in").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case row%2 == 0:
				return tableRowStyle
			default:
				return tableRowAltStyle
			}
		})
	return tbl.Render()
}
