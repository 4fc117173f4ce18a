// Command redirects builds the redirect table of the kernel image. Kernel
// functions annotated with a go:redirect-from directive replace the named
// runtime function at boot; the rt0 code patches each source symbol with a
// jump to its replacement using the table written by this tool.
package main

import (
	"bufio"
	"debug/elf"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var errNoModuleDirective = errors.New("go.mod does not contain a module directive")

type redirect struct {
	src string
	dst string

	srcVMA uint64
	dstVMA uint64
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[redirects] error: %s\n", err.Error())
	os.Exit(1)
}

// modulePath returns the module path declared in a go.mod file.
func modulePath(goModFile string) (string, error) {
	f, err := os.Open(goModFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "module" {
			return strings.Trim(fields[1], `"`), nil
		}
	}

	if err = scanner.Err(); err != nil {
		return "", err
	}

	return "", fmt.Errorf("%s: %w", goModFile, errNoModuleDirective)
}

func collectGoFiles(root string) ([]string, error) {
	var goFiles []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			goFiles = append(goFiles, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return goFiles, nil
}

// findRedirects scans the kernel sources of the module rooted at moduleRoot
// for go:redirect-from directives. The result is sorted by source symbol.
func findRedirects(moduleRoot string) ([]*redirect, error) {
	modPath, err := modulePath(filepath.Join(moduleRoot, "go.mod"))
	if err != nil {
		return nil, err
	}

	goFiles, err := collectGoFiles(filepath.Join(moduleRoot, "kernel"))
	if err != nil {
		return nil, err
	}

	var redirects []*redirect
	for _, goFile := range goFiles {
		fset := token.NewFileSet()

		f, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", goFile, err)
		}

		pkgDir, err := filepath.Rel(moduleRoot, filepath.Dir(goFile))
		if err != nil {
			return nil, err
		}

		cmap := ast.NewCommentMap(fset, f, f.Comments)
		cmap.Filter(f)
		for astNode, commentGroups := range cmap {
			fnDecl, ok := astNode.(*ast.FuncDecl)
			if !ok {
				continue
			}

			for _, commentGroup := range commentGroups {
				for _, comment := range commentGroup.List {
					if !strings.Contains(comment.Text, "go:redirect-from") {
						continue
					}

					// build qualified name to fn
					fqName := fmt.Sprintf("%s/%s.%s", modPath, filepath.ToSlash(pkgDir), fnDecl.Name)

					fields := strings.Fields(comment.Text)
					if len(fields) != 2 || fields[0] != "//go:redirect-from" {
						return nil, fmt.Errorf("malformed go:redirect-from syntax for %q", fqName)
					}

					redirects = append(redirects, &redirect{
						src: fields[1],
						dst: fqName,
					})
				}
			}
		}
	}

	sort.Slice(redirects, func(i, j int) bool { return redirects[i].src < redirects[j].src })
	return redirects, nil
}

func elfRedirectTableOffset(imgFile string) (uint64, error) {
	f, err := elf.Open(imgFile)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	redirectsSection := f.Section(".goredirectstbl")
	if redirectsSection == nil {
		return 0, fmt.Errorf("%s: missing .goredirectstbl section", imgFile)
	}

	return redirectsSection.Offset, nil
}

// elfWriteRedirectTable writes the (src, dst) address pairs of a 32-bit
// kernel image into its redirect table section.
func elfWriteRedirectTable(redirects []*redirect, imgFile string) error {
	redirectTableOffset, err := elfRedirectTableOffset(imgFile)
	if err != nil {
		return err
	}

	// Open kernel image file and seek to table offset
	f, err := os.OpenFile(imgFile, os.O_WRONLY, os.ModeType)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Seek(int64(redirectTableOffset), io.SeekStart); err != nil {
		return err
	}

	for _, redirect := range redirects {
		entry := [2]uint32{uint32(redirect.srcVMA), uint32(redirect.dstVMA)}
		if err = binary.Write(f, binary.LittleEndian, entry); err != nil {
			return err
		}
	}

	return nil
}

func elfResolveRedirectSymbols(redirects []*redirect, imgFile string) error {
	f, err := elf.Open(imgFile)
	if err != nil {
		return err
	}
	defer f.Close()

	symbols, err := f.Symbols()
	if err != nil {
		return err
	}

	return resolveRedirectSymbols(redirects, symbols, imgFile)
}

func resolveRedirectSymbols(redirects []*redirect, symbols []elf.Symbol, imgFile string) error {
	for _, redirect := range redirects {
		for _, symbol := range symbols {
			if symbol.Name == redirect.src {
				redirect.srcVMA = symbol.Value
			}
			if symbol.Name == redirect.dst {
				redirect.dstVMA = symbol.Value
			}
		}

		switch {
		case redirect.srcVMA == 0:
			return fmt.Errorf("%s: could not locate address of %q", imgFile, redirect.src)
		case redirect.dstVMA == 0:
			return fmt.Errorf("%s: could not locate address of %q", imgFile, redirect.dst)
		}
	}

	return nil
}

func run(cmd string, args []string) error {
	if matches, _ := filepath.Glob("go.mod"); len(matches) != 1 {
		return errors.New("this tool must be run from the module root folder")
	}

	var imgFile string
	switch cmd {
	case "count":
	case "populate-table":
		if len(args) != 1 {
			return errors.New("populate-table requires the path to the kernel image as an argument")
		}
		imgFile = args[0]
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	redirects, err := findRedirects(".")
	if err != nil {
		return err
	}

	if cmd == "count" {
		fmt.Printf("%d", len(redirects))
		return nil
	}

	if err = elfResolveRedirectSymbols(redirects, imgFile); err != nil {
		return err
	}

	return elfWriteRedirectTable(redirects, imgFile)
}

func main() {
	flag.Parse()
	if len(flag.Args()) == 0 {
		exit(errors.New("missing command"))
	}

	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		exit(err)
	}
}
