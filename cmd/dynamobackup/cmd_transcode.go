package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/coffersTech/dynamobackup/internal/model"
	"github.com/coffersTech/dynamobackup/internal/pkg/transcode"
	"github.com/coffersTech/dynamobackup/internal/storage"
)

var transcodeInput string

var transcodeCmd = &cobra.Command{
	Use:   "transcode",
	Short: "Transcode DynamoDB JSON lines from a file or stdin",
	Long: `Reads one DynamoDB JSON item per line, as written by a backup, and
prints each item transcoded with the configured format. Compression of
--input is taken from its extension unless --compression is given.

Example:
  dynamobackup transcode --input orders-daily.json.zst --data-pipeline`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		compression := storage.CompressionOf(transcodeInput)
		if transcodeInput != "" && transcodeInput != "-" {
			f, err := os.Open(transcodeInput)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		if cmd.Flags().Changed("compression") {
			compression = cfg.Compression
		}

		return transcodeLines(in, cmd.OutOrStdout(), compression, cfg.Mode())
	},
}

func init() {
	transcodeCmd.Flags().StringVarP(&transcodeInput, "input", "i", "", "input file, stdin when empty or -")
}

func transcodeLines(in io.Reader, out io.Writer, compression string, mode transcode.Mode) error {
	lines, err := storage.NewLineReader(in, compression)
	if err != nil {
		return err
	}
	defer lines.Close()

	w := bufio.NewWriter(out)
	tc := transcode.New(mode)
	for lines.Next() {
		record, err := model.ParseRecord(lines.Line())
		if err != nil {
			return fmt.Errorf("line %d: %w", lines.LineNo(), err)
		}
		doc, err := tc.Transcode(record)
		if err != nil {
			return fmt.Errorf("line %d: %w", lines.LineNo(), err)
		}
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(doc)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := lines.Err(); err != nil {
		return err
	}
	return w.Flush()
}
