package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"VaultLedger/internal/server"
	"VaultLedger/internal/types"
)

var (
	serverAddr string
	timeout    time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <command> [payload.json]",
	Short: "Submit a command to a running ledger",
	Long: `Sends a JSON command payload (from a file, or stdin when omitted) and
prints the applied sequence, state hash and outcome.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSubmit,
}

var positionsCmd = &cobra.Command{
	Use:   "positions <owner>",
	Short: "List an owner's positions",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositions,
}

func init() {
	for _, c := range []*cobra.Command{submitCmd, positionsCmd} {
		c.Flags().StringVar(&serverAddr, "addr", "localhost:9090", "ledger gRPC address")
		c.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	}
	rootCmd.AddCommand(submitCmd, positionsCmd)
}

func dialLedger() (*server.VaultServiceClient, func(), error) {
	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", serverAddr, err)
	}
	return server.NewVaultServiceClient(conn), func() { conn.Close() }, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	var (
		payload []byte
		err     error
	)
	if len(args) == 2 {
		payload, err = os.ReadFile(args[1])
	} else {
		payload, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("payload is not valid JSON")
	}

	client, closeConn, err := dialLedger()
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	resp, err := client.SubmitCommand(ctx, &server.SubmitCommandRequest{EventType: args[0], Payload: payload})
	if err != nil {
		return err
	}
	return printJSON(cmd, resp)
}

func runPositions(cmd *cobra.Command, args []string) error {
	client, closeConn, err := dialLedger()
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	resp, err := client.GetPositions(ctx, &server.GetPositionsRequest{Owner: types.Address(args[0])})
	if err != nil {
		return err
	}
	return printJSON(cmd, resp)
}
