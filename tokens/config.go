package tokens

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of a token registry.
//
//	default: official
//	tokens:
//	  - label: official
//	    name: JPY Coin
//	    symbol: JPYC
//	    address: "0x431D5dfF03120AFA4bDf332c61A6e1766eF37BDB"
//	    decimals: 18
type FileConfig struct {
	Default string        `yaml:"default"`
	Tokens  []TokenConfig `yaml:"tokens" validate:"required,min=1,dive"`
}

type TokenConfig struct {
	Label    string `yaml:"label" validate:"required"`
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address" validate:"required"`
	Decimals uint8  `yaml:"decimals"`
}

// LoadRegistry reads a YAML registry definition.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var cfg FileConfig
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "decode token registry")
	}
	if err := utils.ValidateStruct(&cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid token registry")
	}

	descriptors := make([]Descriptor, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		addr, err := utils.NormalizeAddress(t.Address)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "token %q", t.Label)
		}
		descriptors = append(descriptors, Descriptor{
			Label:            types.TokenLabel(t.Label),
			Name:             t.Name,
			Symbol:           t.Symbol,
			ContractAddress:  common.HexToAddress(addr),
			FallbackDecimals: t.Decimals,
		})
	}

	return NewRegistry(types.TokenLabel(cfg.Default), descriptors...)
}

// LoadRegistryFile reads a YAML registry definition from path.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "open token registry")
	}
	defer f.Close()

	return LoadRegistry(f)
}
