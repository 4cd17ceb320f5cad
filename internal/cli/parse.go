package cli

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowledger/internal/ir"
)

// BatchFile is the YAML form of one anchor batch.
//
//	commands:
//	  - {prime: 3, target: 2}
//	  - {prime: 2, target: 3}
type BatchFile struct {
	Commands []ir.Command `yaml:"commands"`
}

func parseEntity(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entity %q: %w", s, err)
	}
	return v, nil
}

func parsePrime(s string) (ir.Prime, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid prime %q: %w", s, err)
	}
	return ir.Prime(v), nil
}

// parseNode accepts "S3", "s3" or "3".
func parseNode(s string) (ir.Node, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "S"), "s")
	i, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("invalid node %q: want S0..S7 or 0..7", s)
	}
	return ir.NodeFromIndex(i)
}

// parseCommand parses "prime=target", for example "3=2". The target is not
// range checked here; the ledger rejects targets outside 0..7.
func parseCommand(s string) (ir.Command, error) {
	primeStr, targetStr, ok := strings.Cut(s, "=")
	if !ok {
		return ir.Command{}, fmt.Errorf("invalid command %q: want prime=target", s)
	}
	prime, err := parsePrime(primeStr)
	if err != nil {
		return ir.Command{}, err
	}
	target, err := strconv.ParseUint(targetStr, 10, 8)
	if err != nil {
		return ir.Command{}, fmt.Errorf("invalid target %q: %w", targetStr, err)
	}
	return ir.Command{Prime: prime, Target: uint8(target)}, nil
}

func loadBatchFile(path string) ([]ir.Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var bf BatchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	return bf.Commands, nil
}
