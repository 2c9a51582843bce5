// Command history dumps the room's message log straight from BadgerDB,
// optionally narrowed down by a full-text search against the Bluge index.
// It opens both stores read-only so it can run next to a live server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

type storedMessage struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at"`
}

func main() {
	dbPath := flag.String("db", "/tmp/badger", "Path to badger DB")
	indexPath := flag.String("index", "/tmp/bluge", "Path to bluge index")
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	search := flag.String("search", "", "Full-text query to narrow the dump")
	limit := flag.Int("limit", 100, "Maximum search hits")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	// With a search query only matching ids are printed.
	var matched map[string]bool
	if *search != "" {
		matched, err = searchIDs(*indexPath, *search, *limit)
		if err != nil {
			log.Fatal("Search failed: ", err)
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "State", "Created", "Updated", "ID", "Body"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Skip the secondary id index entries.
			if strings.HasPrefix(string(item.Key()), "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var m storedMessage
				if err := json.Unmarshal(v, &m); err != nil {
					// Log the broken row and keep dumping the rest.
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				if matched != nil && !matched[m.ID] {
					return nil
				}

				state := "LIVE"
				if m.DeletedAt != nil {
					state = "DELETED"
				}

				displayID := m.ID
				if len(displayID) > 8 {
					displayID = displayID[:8]
				}

				table.Append([]string{
					string(item.Key()),
					state,
					time.Unix(0, m.CreatedAt).Format("15:04:05"),
					time.Unix(0, m.UpdatedAt).Format("15:04:05"),
					displayID,
					m.Body,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func searchIDs(indexPath, query string, limit int) (map[string]bool, error) {
	reader, err := bluge.OpenReader(bluge.DefaultConfig(indexPath))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	q := bluge.NewMatchQuery(query).SetField("body")
	request := bluge.NewTopNSearch(limit, q)

	iterator, err := reader.Search(context.Background(), request)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids[string(value)] = true
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// A dirty value log needs one writable open to truncate it.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
