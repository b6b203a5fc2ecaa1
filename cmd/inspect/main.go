// Command inspect dumps the badger store as a table. Handy for
// checking what the messaging engine actually persisted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"market-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg: or conv:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Conversation", "Who", "When", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Secondary indexes carry no payload worth printing.
			if strings.HasPrefix(key, "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				row, err := toRow(key, v)
				if err != nil {
					// Log and keep scanning instead of stopping the dump.
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}
				table.Append(row)
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	color.Cyan.Printf("%d entries under prefix %q\n\n", rows, *prefix)
	table.Render()
}

func toRow(key string, value []byte) ([]string, error) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var stored repositories.DiskMessage
		if err := cbor.Unmarshal(value, &stored); err != nil {
			return nil, err
		}
		detail := stored.Body
		if stored.AttachmentURL != "" {
			detail += " [attachment]"
		}
		if stored.ReadAt == 0 {
			detail += color.Yellow.Render(" (unread)")
		}
		return []string{
			key,
			stored.Conversation,
			stored.Sender,
			time.Unix(0, stored.At).UTC().Format(time.RFC3339),
			detail,
		}, nil
	case strings.HasPrefix(key, "conv:"):
		var stored repositories.DiskConversation
		if err := cbor.Unmarshal(value, &stored); err != nil {
			return nil, err
		}
		return []string{
			key,
			stored.ID,
			stored.Requester + " <-> " + stored.Provider,
			time.Unix(0, stored.At).UTC().Format(time.RFC3339),
			"subject " + stored.Subject,
		}, nil
	default:
		return []string{key, "-", "-", "-", fmt.Sprintf("%d bytes", len(value))}, nil
	}
}
