package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	sonic "github.com/bytedance/sonic"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
)

const (
	colorReminder = 0x3498DB
	colorLive     = 0xE67E22
	colorFinished = 0x2ECC71
	colorCanceled = 0x95A5A6
)

// snapshotView picks the display fields out of the stored provider payload.
// Everything here is optional; the embed degrades to IDs when absent.
type snapshotView struct {
	Name   string `json:"name"`
	League struct {
		Name string `json:"name"`
	} `json:"league"`
	Serie struct {
		FullName string `json:"full_name"`
	} `json:"serie"`
	Tournament struct {
		Name string `json:"name"`
	} `json:"tournament"`
	NumberOfGames int `json:"number_of_games"`
	Opponents     []struct {
		Opponent struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Acronym string `json:"acronym"`
		} `json:"opponent"`
	} `json:"opponents"`
	Results []struct {
		TeamID int64 `json:"team_id"`
		Score  int   `json:"score"`
	} `json:"results"`
	Winner struct {
		Name string `json:"name"`
	} `json:"winner"`
}

func parseSnapshot(m match.Match) snapshotView {
	var view snapshotView
	if len(m.Snapshot) == 0 {
		return view
	}
	// A stale or truncated snapshot still has to produce a message.
	_ = sonic.Unmarshal(m.Snapshot, &view)
	return view
}

func (v snapshotView) matchup(fallbackID int64) string {
	names := make([]string, 0, len(v.Opponents))
	for _, item := range v.Opponents {
		name := strings.TrimSpace(item.Opponent.Name)
		if name == "" {
			name = strings.TrimSpace(item.Opponent.Acronym)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) >= 2 {
		return strings.Join(names, " vs ")
	}
	if name := strings.TrimSpace(v.Name); name != "" {
		return name
	}
	return fmt.Sprintf("Match %d", fallbackID)
}

func (v snapshotView) competition() string {
	parts := make([]string, 0, 2)
	if name := strings.TrimSpace(v.League.Name); name != "" {
		parts = append(parts, name)
	}
	if name := strings.TrimSpace(v.Serie.FullName); name != "" {
		parts = append(parts, name)
	} else if name := strings.TrimSpace(v.Tournament.Name); name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, " - ")
}

func (v snapshotView) score() string {
	if len(v.Results) < 2 {
		return ""
	}
	scores := make([]string, 0, len(v.Results))
	for _, item := range v.Results {
		scores = append(scores, fmt.Sprintf("%d", item.Score))
	}
	return strings.Join(scores, " : ")
}

func buildReminderEmbed(m match.Match, offsetMinutes int) *discordgo.MessageEmbed {
	view := parseSnapshot(m)

	title := fmt.Sprintf("Starts in %d minutes", offsetMinutes)
	color := colorReminder
	if offsetMinutes == 0 {
		title = "Starting now"
		color = colorLive
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: view.matchup(m.ID),
		Color:       color,
	}
	if competition := view.competition(); competition != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Competition",
			Value:  competition,
			Inline: true,
		})
	}
	if view.NumberOfGames > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Format",
			Value:  fmt.Sprintf("Best of %d", view.NumberOfGames),
			Inline: true,
		})
	}
	if m.BeginAt != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Start",
			Value:  fmt.Sprintf("<t:%d:f>", m.BeginAt.Unix()),
			Inline: true,
		})
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Match ID: %d", m.ID),
	}
	return embed
}

func buildResultEmbed(m match.Match) *discordgo.MessageEmbed {
	view := parseSnapshot(m)

	title := "Match finished"
	color := colorFinished
	switch match.NormalizeStatus(m.Status) {
	case match.StatusCanceled:
		title = "Match canceled"
		color = colorCanceled
	case match.StatusPostponed:
		title = "Match postponed"
		color = colorCanceled
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: view.matchup(m.ID),
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if score := view.score(); score != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Score",
			Value:  score,
			Inline: true,
		})
	}
	if winner := strings.TrimSpace(view.Winner.Name); winner != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Winner",
			Value:  winner,
			Inline: true,
		})
	}
	if competition := view.competition(); competition != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Competition",
			Value:  competition,
			Inline: true,
		})
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Match ID: %d", m.ID),
	}
	return embed
}
