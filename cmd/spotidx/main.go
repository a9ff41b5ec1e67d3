// Command spotidx is a REPL for exercising an on-disk inverted index: open
// a directory, insert (token, docid, value) triples, and run boolean
// queries over the result. It is the only place in this module that
// parses flags or calls log.Fatal; every package under it returns errors.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/chirst/spotidx/header"
	"github.com/chirst/spotidx/index"
	"github.com/chirst/spotidx/pager"
	"github.com/chirst/spotidx/query"
)

func main() {
	dir := flag.StringP("dir", "d", "", "index directory (empty for a memory-only index)")
	buckets := flag.Uint64P("buckets", "b", header.DefaultNumBuckets, "bucket count for a newly created index")
	cachePages := flag.IntP("cache-pages", "c", pager.DefaultMaxResident, "resident page cache capacity")
	flag.Parse()

	idx, err := index.Open(*dir,
		index.WithNumBuckets(*buckets),
		index.WithMaxResidentPages(*cachePages),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	r := &repl{idx: idx}
	r.run()
}

// repl is modeled on chirst-cdb's repl.go: a bufio.Scanner loop over
// stdin, a ".exit" sentinel, and a single dispatch point that prints
// either an error or a result.
type repl struct {
	idx *index.Index
}

func (r *repl) run() {
	fmt.Println("Welcome to spotidx. Type .exit to exit, .help for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for r.getInput(scanner) {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '.' {
			switch line {
			case ".exit":
				if err := r.idx.Save(); err != nil {
					fmt.Printf("Err: %s\n", err.Error())
				}
				os.Exit(0)
			case ".help":
				r.printHelp()
			default:
				fmt.Printf("Err: unknown command %q\n", line)
			}
			continue
		}
		if err := r.dispatch(line); err != nil {
			fmt.Printf("Err: %s\n", err.Error())
		}
	}
}

func (*repl) getInput(scanner *bufio.Scanner) bool {
	fmt.Printf("spotidx > ")
	return scanner.Scan()
}

func (*repl) printHelp() {
	fmt.Println(`commands:
  add <token> <docid> <value>    insert a tokenized document
  adddoc <docid> <value>         tag docid with the reserved all-documents token
  get <token>                    list every (value, docid) posted under token
  and <token> [token...]         intersect the posting lists of every token
  or <token> [token...]          union the posting lists of every token
  save                           flush pages and rewrite the header
  .exit                          save and quit
  .help                          show this message`)
}

func (r *repl) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "add":
		return r.cmdAdd(args)
	case "adddoc":
		return r.cmdAddDoc(args)
	case "get":
		return r.cmdGet(args)
	case "and":
		return r.cmdBoolean(args, func(nodes []query.Node) (query.Node, error) {
			return r.idx.AND(nodes, nil)
		})
	case "or":
		return r.cmdBoolean(args, r.idx.OR)
	case "save":
		return r.idx.Save()
	default:
		return fmt.Errorf("unknown command %q, type .help for a list", cmd)
	}
}

func (r *repl) cmdAdd(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: add <token> <docid> <value>")
	}
	docid, value, err := parseDocidValue(args[1], args[2])
	if err != nil {
		return err
	}
	return r.idx.Add(args[0], docid, value)
}

func (r *repl) cmdAddDoc(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: adddoc <docid> <value>")
	}
	docid, value, err := parseDocidValue(args[0], args[1])
	if err != nil {
		return err
	}
	return r.idx.AddDoc(docid, value)
}

func (r *repl) cmdGet(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <token>")
	}
	node, err := r.idx.DocumentsWithToken(args[0])
	if err != nil {
		return err
	}
	return r.printAll(node)
}

// cmdBoolean drives both "and" and "or": it looks up one posting-list node
// per token argument and combines them with combine, a thin closure over
// either Index.AND (with nil negation) or Index.OR below (no negation
// support in the REPL; AND's negated-operand form is reachable only from
// Go callers).
func (r *repl) cmdBoolean(args []string, combine func([]query.Node) (query.Node, error)) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: and|or <token> [token...]")
	}
	nodes := make([]query.Node, len(args))
	for i, tok := range args {
		n, err := r.idx.DocumentsWithToken(tok)
		if err != nil {
			return err
		}
		nodes[i] = n
	}
	node, err := combine(nodes)
	if err != nil {
		return err
	}
	return r.printAll(node)
}

func (r *repl) printAll(node query.Node) error {
	results, _, done, err := query.Retrieve(node, 1<<20)
	if err != nil {
		return err
	}
	if !done {
		fmt.Println("(truncated at 1,048,576 results)")
	}
	if len(results) == 0 {
		fmt.Println("(0 results)")
		return nil
	}
	for _, v := range results {
		fmt.Printf("value=%d docid=%d\n", v.Value, v.Docid)
	}
	return nil
}

func parseDocidValue(docidStr, valueStr string) (docid, value uint64, err error) {
	docid, err = strconv.ParseUint(docidStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid docid %q: %w", docidStr, err)
	}
	value, err = strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value %q: %w", valueStr, err)
	}
	return docid, value, nil
}
