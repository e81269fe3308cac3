package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseURLList reads URLs from r. A line may hold several comma-separated
// URLs; blank entries and lines starting with '#' are ignored. Order is kept.
func ParseURLList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, u := range strings.Split(line, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

// CollectURLs builds the batch: the entries of inputFile, when set, followed
// by single, when set. An input file that cannot be read is an error.
func CollectURLs(inputFile, single string) ([]string, error) {
	var urls []string
	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %s: %w", inputFile, err)
		}
		defer func() {
			_ = f.Close()
		}()
		urls, err = ParseURLList(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file %s: %w", inputFile, err)
		}
	}
	if s := strings.TrimSpace(single); s != "" {
		urls = append(urls, s)
	}
	return urls, nil
}
