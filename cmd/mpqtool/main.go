// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Command mpqtool inspects and extracts MPQ archives.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mpq "github.com/nazarpunk/go-mpq"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mpqtool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	archivePath := fs.String("archive", "", "Path to the MPQ archive (required)")
	action := fs.String("action", "list", "Action to perform: info, list, extract, extract-all, verify")
	itemPath := fs.String("path", "", "Path of the file within the archive")
	outputPath := fs.String("out", ".", "Output directory for extracted files")
	localeName := fs.String("locale", "", "Preferred locale as a BCP 47 tag, e.g. de-DE")
	strict := fs.Bool("strict", false, "Fail on sector checksum mismatches")
	workers := fs.Int("workers", 4, "Number of parallel readers for extract-all")
	verbose := fs.Bool("v", false, "Log warnings to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archivePath == "" {
		fs.Usage()
		return errors.New("-archive flag is required")
	}

	locale, err := mpq.ParseLocale(*localeName)
	if err != nil {
		return err
	}

	opts := []mpq.Option{mpq.WithStrictChecksums(*strict)}
	if *verbose {
		opts = append(opts, mpq.WithLogger(slog.New(slog.NewTextHandler(stderr, nil))))
	}

	archive, err := mpq.OpenFile(*archivePath, opts...)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", *archivePath, err)
	}
	defer archive.Close()

	switch *action {
	case "info":
		printInfo(stdout, archive)
	case "list":
		for name := range archive.Files() {
			fmt.Fprintln(stdout, name)
		}
	case "extract":
		if *itemPath == "" {
			return errors.New("-path flag is required for 'extract' action")
		}
		outFilePath, err := outputFile(*outputPath, baseName(*itemPath))
		if err != nil {
			return err
		}
		if err := extractFile(archive, *itemPath, locale, outFilePath); err != nil {
			return fmt.Errorf("extracting file '%s': %w", *itemPath, err)
		}
		fmt.Fprintf(stdout, "File '%s' extracted to '%s'\n", *itemPath, outFilePath)
	case "extract-all":
		failed := extractAll(archive, locale, *outputPath, *workers, stdout, stderr)
		if failed > 0 {
			return fmt.Errorf("%d files could not be extracted", failed)
		}
		fmt.Fprintln(stdout, "All files extracted to:", *outputPath)
	case "verify":
		if err := verify(archive, *itemPath, stdout); err != nil {
			return err
		}
	default:
		fs.Usage()
		return fmt.Errorf("unknown action '%s'", *action)
	}
	return nil
}

func printInfo(w io.Writer, archive *mpq.Archive) {
	fmt.Fprintf(w, "Header offset:  %d\n", archive.Offset())
	fmt.Fprintf(w, "Format version: %d\n", archive.FormatVersion())
	fmt.Fprintf(w, "Sector size:    %d\n", archive.SectorSize())
	fmt.Fprintf(w, "Hash entries:   %d\n", archive.HashTableSize())
	fmt.Fprintf(w, "Block entries:  %d\n", archive.BlockTableSize())
	fmt.Fprintf(w, "Listed files:   %d\n", len(archive.ListFiles()))
	if sig, err := archive.WeakSignature(); err == nil && sig != nil {
		fmt.Fprintln(w, "Weak signature: present")
	}
	if sig, err := archive.StrongSignature(); err == nil && sig != nil {
		fmt.Fprintln(w, "Strong signature: present")
	}
}

// extractFile extracts a single file to the specified output path.
func extractFile(archive *mpq.Archive, name string, locale mpq.Locale, outFilePath string) error {
	fileData, err := archive.ReadFileLocale(name, locale, 0)
	if err != nil {
		return err
	}

	// Ensure output directory exists
	outDir := filepath.Dir(outFilePath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory '%s': %w", outDir, err)
	}

	if err := os.WriteFile(outFilePath, fileData, 0644); err != nil {
		return fmt.Errorf("failed to write extracted file to '%s': %w", outFilePath, err)
	}
	return nil
}

// extractAll extracts every listed file using workers goroutines and
// returns the number of failures.
func extractAll(archive *mpq.Archive, locale mpq.Locale, outDir string, workers int, stdout, stderr io.Writer) int {
	if workers < 1 {
		workers = 1
	}

	names := make(chan string)
	var (
		mu     sync.Mutex
		failed int
		wg     sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				outFilePath, err := outputFile(outDir, name)
				if err == nil {
					err = extractFile(archive, name, locale, outFilePath)
				}

				mu.Lock()
				if err != nil {
					fmt.Fprintf(stderr, "Error extracting %s: %v. Skipping.\n", name, err)
					failed++
				} else {
					fmt.Fprintf(stdout, "Extracting %s -> %s\n", name, outFilePath)
				}
				mu.Unlock()
			}
		}()
	}

	for name := range archive.Files() {
		names <- name
	}
	close(names)
	wg.Wait()

	return failed
}

// verify checks one file, or every listed file when name is empty, against (attributes).
func verify(archive *mpq.Archive, name string, w io.Writer) error {
	if name != "" {
		if err := archive.VerifyFile(name); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: OK\n", name)
		return nil
	}

	var bad int
	for file := range archive.Files() {
		if err := archive.VerifyFile(file); err != nil {
			fmt.Fprintf(w, "%s: %v\n", file, err)
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d files failed verification", bad)
	}
	fmt.Fprintln(w, "All files OK")
	return nil
}

// hostPath converts an archive path to the local path separator.
func hostPath(name string) string {
	return filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
}

// outputFile returns where name is extracted to under outDir. Names come
// from the archive and must not reach outside outDir.
func outputFile(outDir, name string) (string, error) {
	local := hostPath(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("refusing to extract '%s' outside the output directory", name)
	}
	return filepath.Join(outDir, local), nil
}

func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
