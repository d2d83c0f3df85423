package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	url      string
	chainID  uint16
	nonce    uint64
	to       string
	value    uint64
	gasLimit uint64
	gasPrice uint64
	data     []byte
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		sendWithDetails(privateKey)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().Uint16VarP(&chainID, "chain", "i", 1, "Chain id to bind the transaction to.")
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Nonce for the transaction.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the transaction. Empty creates a contract.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	sendCmd.Flags().Uint64VarP(&gasLimit, "gas-limit", "l", 21000, "Maximum gas to consume.")
	sendCmd.Flags().Uint64VarP(&gasPrice, "gas-price", "g", 1, "Price paid per unit of gas.")
	sendCmd.Flags().BytesHexVarP(&data, "data", "d", nil, "Payload to send. Contract code when creating.")
}

func sendWithDetails(privateKey *ecdsa.PrivateKey) {
	tx, err := database.NewTx(chainID, nonce, database.AccountID(to), value, gasLimit, gasPrice, data)
	if err != nil {
		log.Fatal(err)
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	payload, err := json.Marshal(signedTx)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(payload))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		TxHash string `json:"tx_hash"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatal(err)
	}

	if result.Error != "" {
		log.Fatal(result.Error)
	}

	fmt.Println(result.Status, result.TxHash)
}
