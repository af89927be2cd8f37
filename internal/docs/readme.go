// Package docs renders the command table for humans: a markdown listing
// grouped by who can run each command, optionally spliced into a README
// template.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"

	"chat-commander/pkg/cmd"
)

const (
	TierEveryone    = "Everyone"
	TierSubscriber  = "Subscribers"
	TierModerator   = "Moderators"
	TierBroadcaster = "Broadcaster"
	TierRestricted  = "Restricted"
)

// TierWeights orders the sections of the listing, lower first.
var TierWeights = map[string]int{
	TierEveryone:    0,
	TierSubscriber:  10,
	TierModerator:   20,
	TierBroadcaster: 30,
	TierRestricted:  40,
}

// Tier names the most open audience a permission list admits. Permissions
// are OR-ed, so the least privileged recognized entry decides.
func Tier(perms []cmd.Permission) string {
	if len(perms) == 0 {
		return TierEveryone
	}
	tier := TierRestricted
	for _, p := range perms {
		var t string
		switch p {
		case cmd.Subscriber:
			t = TierSubscriber
		case cmd.Moderator:
			t = TierModerator
		case cmd.Broadcaster:
			t = TierBroadcaster
		default:
			continue
		}
		if TierWeights[t] < TierWeights[tier] {
			tier = t
		}
	}
	return tier
}

// CommandSections renders commands as markdown sections, one per tier.
func CommandSections(infos []cmd.Info, prefix string) string {
	sorted := append([]cmd.Info(nil), infos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		wi, wj := TierWeights[Tier(sorted[i].Permissions)], TierWeights[Tier(sorted[j].Permissions)]
		if wi == wj {
			return sorted[i].Name < sorted[j].Name
		}
		return wi < wj
	})

	var buf bytes.Buffer
	current := ""
	for _, c := range sorted {
		tier := Tier(c.Permissions)
		if tier != current {
			if current != "" {
				buf.WriteString("\n")
			}
			current = tier
			fmt.Fprintf(&buf, "### %s\n\n", current)
		}
		fmt.Fprintf(&buf, "- **`%s%s`** %s", prefix, c.Name, c.Description)
		if c.Usage != "" {
			fmt.Fprintf(&buf, " (usage: `%s`)", c.Usage)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// Render executes a README template exposing {{.CommandSections}}.
func Render(w io.Writer, tmplText string, infos []cmd.Info, prefix string) error {
	tmpl, err := template.New("readme").Parse(tmplText)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	data := struct {
		CommandSections string
		Prefix          string
	}{
		CommandSections: CommandSections(infos, prefix),
		Prefix:          prefix,
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	return nil
}

// UpdateReadme renders tmplPath into outPath.
func UpdateReadme(tmplPath, outPath string, infos []cmd.Info, prefix string) error {
	tmplData, err := os.ReadFile(tmplPath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	var out bytes.Buffer
	if err := Render(&out, string(tmplData), infos, prefix); err != nil {
		return err
	}
	return os.WriteFile(outPath, out.Bytes(), 0o644)
}
