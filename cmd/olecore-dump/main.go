// Command olecore-dump is a smoke-test entry point over the olecore
// packages: it opens a compound file, lists its streams, and dumps whatever
// it recognizes (Word text, VBA module source) to stdout. It contains no
// parsing logic of its own.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"unicode/utf8"

	"olecore/cfb"
	"olecore/doc"
	"olecore/internal/xlog"
	"olecore/vba"
)

var (
	inputFile string
	password  string
	verbose   bool
)

func main() {
	flag.StringVar(&inputFile, "i", "", "input compound file (.doc, .xls, ...)")
	flag.StringVar(&password, "p", "", "document password, if encrypted")
	flag.BoolVar(&verbose, "v", false, "enable structural trace logging")
	flag.Parse()

	if inputFile == "" {
		flag.Usage()
		return
	}
	if verbose {
		xlog.SetLogger(log.New(os.Stderr, "[olecore] ", log.LstdFlags))
	}

	f, err := os.Open(inputFile)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		fmt.Println(err)
		return
	}

	r, err := cfb.Open(f, fi.Size())
	if err != nil {
		fmt.Println(err)
		return
	}
	if anomalies := r.Anomalies(); len(anomalies) > 0 {
		for _, a := range anomalies {
			fmt.Fprintf(os.Stderr, "anomaly: %s\n", a)
		}
	}

	var names []string
	r.Walk(func(e *cfb.DirEntry) error {
		names = append(names, e.Name)
		return nil
	})
	fmt.Printf("file[%s] streams=%v\n", inputFile, names)

	ad := &cfbAdapter{r: r}
	if hasStream(names, "WordDocument") {
		dumpDoc(ad, password)
	}
	for _, name := range names {
		if strings.HasPrefix(name, "VBA_") || name == "VBA" {
			dumpVBAProject(ad, names)
			break
		}
	}
}

func hasStream(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func dumpDoc(ad *cfbAdapter, password string) {
	var passwords []string
	if password != "" {
		passwords = []string{password}
	}
	d, err := doc.Open(ad, passwords)
	if err != nil {
		fmt.Println("doc:", err)
		return
	}
	it, err := d.CharIter(doc.PartMain)
	if err != nil {
		fmt.Println("doc:", err)
		return
	}
	var sb strings.Builder
	for {
		wc, ok, err := it.Next()
		if err != nil {
			fmt.Println("doc:", err)
			break
		}
		if !ok {
			break
		}
		sb.WriteRune(wc.Char)
	}
	fmt.Printf("--- main text (%d runes) ---\n%s\n", utf8.RuneCountInString(sb.String()), sb.String())
}

// dumpVBAProject decompiles every module stream that looks like VBA source
// code storage (anything other than the project's own control streams).
func dumpVBAProject(ad *cfbAdapter, names []string) {
	for _, name := range names {
		if name == "VBA" || name == "dir" || name == "_VBA_PROJECT" {
			continue
		}
		sr, err := ad.GetStream(name)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(sr)
		if err != nil || len(data) == 0 {
			continue
		}
		md, err := vba.OpenModule(data, 0x97, 3)
		if err != nil {
			continue
		}
		total, skipped := md.NumLines()
		fmt.Printf("--- module %s (%d lines, %d non-contiguous) ---\n", name, total, skipped)
		for _, lr := range md.Lines() {
			if lr.Err != nil {
				fmt.Printf("  <error: %v>\n", lr.Err)
				continue
			}
			fmt.Println("  " + lr.Text)
		}
	}
}

// cfbAdapter narrows *cfb.Reader down to the GetStream(path) (io.ReadSeeker,
// error) shape the doc and vba callers expect.
type cfbAdapter struct {
	r *cfb.Reader
}

func (a *cfbAdapter) GetStream(path string) (io.ReadSeeker, error) {
	sr, err := a.r.GetStream(path)
	if err != nil {
		return nil, err
	}
	return sr, nil
}
