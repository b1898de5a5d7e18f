package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"trackmeta/internal/analyzer"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// resolveFormat validates the --format flag. An empty value selects a table
// on a terminal and JSON otherwise.
func resolveFormat(value string, out io.Writer) (string, error) {
	switch format := strings.ToLower(strings.TrimSpace(value)); format {
	case "":
		if isTerminal(out) {
			return formatTable, nil
		}
		return formatJSON, nil
	case formatJSON, formatYAML, formatTable:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported --format %q (expected json, yaml or table)", value)
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML renders v through its JSON form so field names match the JSON
// output.
func writeYAML(cmd *cobra.Command, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func writeMetadata(cmd *cobra.Command, format string, md analyzer.TrackMetadata) error {
	switch format {
	case formatYAML:
		return writeYAML(cmd, md)
	case formatTable:
		fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(metadataPairs(md)))
		return nil
	default:
		return writeJSON(cmd, md)
	}
}

func metadataPairs(md analyzer.TrackMetadata) [][2]string {
	vocal := md.VocalStyle.Gender
	if md.VocalStyle.Delivery != "" && md.VocalStyle.Delivery != "none" {
		vocal += ", " + md.VocalStyle.Delivery
	}
	pairs := [][2]string{
		{"Genre", md.MainGenre},
		{"Additional genres", strings.Join(md.AdditionalGenres, ", ")},
		{"Moods", strings.Join(md.Moods, ", ")},
		{"Energy", md.EnergyLevel},
		{"Vibe", md.MoodVibe},
		{"Main instrument", md.MainInstrument},
		{"Instrumentation", strings.Join(md.Instrumentation, ", ")},
		{"Vocals", vocal},
		{"BPM", formatFloat(md.BPM, 1)},
		{"Key", strings.TrimSpace(md.Key + " " + md.Mode)},
		{"Duration", formatFloat(md.Duration, 1) + "s"},
		{"Language", md.Language},
		{"Keywords", strings.Join(md.Keywords, ", ")},
		{"Use cases", strings.Join(md.UseCases, ", ")},
		{"Description", md.TrackDescription},
		{"Method", string(md.Tech.Method)},
		{"Sources", strings.Join(md.Tech.Sources, ", ")},
		{"Confidence", formatFloat(md.Tech.Confidence, 2)},
		{"Analysis time", formatFloat(md.Tech.AnalysisTimeSeconds, 2) + "s"},
		{"Budget met", yesNo(md.Tech.BudgetMet)},
		{"Cached", yesNo(md.Tech.Cached)},
	}
	if len(md.Themes) > 0 {
		pairs = append(pairs, [2]string{"Lyric themes", strings.Join(md.Themes, ", ")})
	}
	return pairs
}

func formatFloat(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
