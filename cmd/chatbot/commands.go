package main

import (
	"fmt"
	"io"
	"strings"

	"chat-commander/internal/config"
	"chat-commander/internal/docs"
	"chat-commander/internal/logging"
	"chat-commander/pkg/cmd"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Print the registered command table without connecting",
	Long:  "Print the registered command table. Example:\n  chatbot commands --format markdown",
	RunE: func(c *cobra.Command, _ []string) error {
		cfg, _, err := config.Load()
		if err != nil {
			return err
		}
		log := logging.New(logging.Options{Level: "warn", Console: c.ErrOrStderr()})

		b, err := assemble(cfg, nil, nil, log)
		if err != nil {
			return err
		}
		infos := b.Commands()

		if tmpl, _ := c.Flags().GetString("readme"); tmpl != "" {
			out, _ := c.Flags().GetString("out")
			if err := docs.UpdateReadme(tmpl, out, infos, cfg.CommandPrefix); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s updated with %d commands\n", out, len(infos))
			return nil
		}

		format, _ := c.Flags().GetString("format")
		return printCommands(c.OutOrStdout(), format, infos, cfg.CommandPrefix)
	},
}

func printCommands(w io.Writer, format string, infos []cmd.Info, prefix string) error {
	switch format {
	case "json":
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "markdown", "md":
		_, err := io.WriteString(w, docs.CommandSections(infos, prefix))
		return err
	case "", "text":
		for _, info := range infos {
			perms := make([]string, 0, len(info.Permissions))
			for _, p := range info.Permissions {
				perms = append(perms, string(p))
			}
			who := strings.Join(perms, "|")
			if who == "" {
				who = "everyone"
			}
			fmt.Fprintf(w, "- %s%s [%s] %s\n", prefix, info.Name, who, info.Description)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func init() {
	commandsCmd.Flags().String("format", "text", "Output format: text, json or markdown")
	commandsCmd.Flags().String("readme", "", "Render this README template instead of printing")
	commandsCmd.Flags().String("out", "README.md", "Output path used with --readme")
	rootCmd.AddCommand(commandsCmd)
}
