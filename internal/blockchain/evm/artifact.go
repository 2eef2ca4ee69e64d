package evm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Descriptor is a contract's name, ABI and (for deployable contracts)
// creation bytecode. It is read-only and shared between Contract and
// EventDecoder.
type Descriptor struct {
	Name     string
	ABI      abi.ABI
	RawABI   json.RawMessage
	Bytecode []byte
}

// NewDescriptor parses an ABI document. bytecode may be nil for contracts
// that are only bound by address.
func NewDescriptor(name, abiJSON string, bytecode []byte) (*Descriptor, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s ABI: %w", name, err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(abiJSON)); err != nil {
		return nil, fmt.Errorf("failed to compact %s ABI: %w", name, err)
	}

	return &Descriptor{
		Name:     name,
		ABI:      parsedABI,
		RawABI:   compact.Bytes(),
		Bytecode: bytecode,
	}, nil
}

// Deployable reports whether the descriptor carries creation bytecode
func (d *Descriptor) Deployable() bool {
	return len(d.Bytecode) > 0
}

// foundryArtifact is the subset of a Foundry out/<Name>.sol/<Name>.json file
// that is needed for deployment
type foundryArtifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode struct {
		Object string `json:"object"`
	} `json:"bytecode"`
}

// ArtifactPath returns the conventional Foundry artifact path for a contract
func ArtifactPath(outDir, name string) string {
	return filepath.Join(outDir, name+".sol", name+".json")
}

// LoadArtifact reads a Foundry build artifact into a Descriptor
func LoadArtifact(path, name string) (*Descriptor, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s (run forge build first): %w", path, err)
	}

	var artifact foundryArtifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if len(artifact.ABI) == 0 {
		return nil, fmt.Errorf("artifact %s has no abi", path)
	}

	var bytecode []byte
	if obj := artifact.Bytecode.Object; obj != "" && obj != "0x" {
		if !strings.HasPrefix(obj, "0x") {
			obj = "0x" + obj
		}
		bytecode, err = hexutil.Decode(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s bytecode: %w", name, err)
		}
	}

	return NewDescriptor(name, string(artifact.ABI), bytecode)
}

// LoadDescriptor loads name from the Foundry out directory, falling back to
// the embedded ABI (without bytecode) when the artifact is absent
func LoadDescriptor(outDir, name string) (*Descriptor, error) {
	path := ArtifactPath(outDir, name)
	if _, err := os.Stat(path); err == nil {
		return LoadArtifact(path, name)
	}

	switch name {
	case MangaNFTName:
		return NewDescriptor(name, MangaNFTABI, nil)
	case MonthlyDataUploaderName:
		return NewDescriptor(name, MonthlyDataUploaderABI, nil)
	default:
		return nil, fmt.Errorf("no artifact for %s at %s", name, path)
	}
}
