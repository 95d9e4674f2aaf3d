package cmd

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-router/core/chainio/signer"
	"github.com/AvaProtocol/ap-router/model"
)

type SignBatchOption struct {
	File       string
	PrivateKey string
	ChainID    int64
	Router     string
}

var (
	signBatchOption = SignBatchOption{}

	signBatchCmd = &cobra.Command{
		Use:   "sign-batch",
		Short: "Sign a logic batch as a router signer",
		Long: `Read a logic batch in the node's JSON wire format and sign its EIP-712 digest
with a signer key. The output is an execute-signed request body ready to be
posted to a node by any relayer.

The private key can also be passed through the PRIVATE_KEY environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := signBatch(signBatchOption)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
)

func signBatch(opt SignBatchOption) (*model.SignedExecuteRequest, error) {
	if opt.PrivateKey == "" {
		opt.PrivateKey = os.Getenv("PRIVATE_KEY")
	}
	key, err := signer.ParsePrivateKey(opt.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if !common.IsHexAddress(opt.Router) {
		return nil, fmt.Errorf("invalid router address %q", opt.Router)
	}

	raw, err := os.ReadFile(opt.File)
	if err != nil {
		return nil, err
	}
	var wire model.LogicBatch
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("cannot parse batch %s: %w", opt.File, err)
	}
	batch, err := wire.ToBatch()
	if err != nil {
		return nil, err
	}

	digest, err := batch.Hash(big.NewInt(opt.ChainID), common.HexToAddress(opt.Router))
	if err != nil {
		return nil, err
	}
	signature, err := signer.SignHash(key, digest.Bytes())
	if err != nil {
		return nil, err
	}

	return &model.SignedExecuteRequest{
		Batch:     model.FromBatch(batch),
		Signer:    signer.AddressOf(key).Hex(),
		Signature: hexutil.Encode(signature),
	}, nil
}

func init() {
	signBatchCmd.Flags().StringVarP(&(signBatchOption.File), "file", "f", "", "path to the batch JSON (required)")
	signBatchCmd.Flags().StringVarP(&(signBatchOption.PrivateKey), "ecdsa-private-key", "k", "", "hex private key of the signer")
	signBatchCmd.Flags().Int64Var(&(signBatchOption.ChainID), "chain-id", 31337, "chain id the router runs on")
	signBatchCmd.Flags().StringVar(&(signBatchOption.Router), "router", "0x00000000000000000000000000000000000000B1", "router address")
	signBatchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(signBatchCmd)
}
