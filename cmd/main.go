package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/liberland/federated-bridge/internal/types"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const appName = "federated-bridge"

func runCommand(_ *cli.Context) error {
	app := NewApplication()
	app.Run()
	return nil
}

func keysCommand(_ *cli.Context) error {
	kp, seed, err := types.GenerateKeypair()
	if err != nil {
		return err
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Printf("SUBSTRATE_SEED=%s\n", seed)
	fmt.Printf("SUBSTRATE_ACCOUNT=%s\n", kp.AccountId())
	fmt.Printf("ETH_PRIVATE_KEY=0x%x\n", crypto.FromECDSA(key))
	fmt.Printf("ETH_ADDRESS=%s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "Liberland federated bridge node, relay and watcher"
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Run the node and the enabled relay and watcher tasks",
			Action: runCommand,
		},
		{
			Name:   "keys",
			Usage:  "Generate a native account seed and an Ethereum key",
			Action: keysCommand,
		},
	}
	app.DefaultCommand = "run"

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%s: %v", appName, err)
	}
}
