package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadSymbols reads the tracked ticker list, one symbol per line.
// Blank lines and lines starting with '#' are skipped; symbols are
// uppercased and de-duplicated in file order.
func LoadSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbols file: %w", err)
	}
	defer f.Close()

	var symbols []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbol := strings.ToUpper(line)
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols file %s lists no symbols", path)
	}
	return symbols, nil
}
