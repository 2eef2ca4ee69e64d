package artifacts

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/ethereum/go-ethereum/common"

	"manga/offchain/internal/models"
)

// FoundryScriptName is the file written next to the deployment records
const FoundryScriptName = "DeployMangaNFT.s.sol"

var foundryScript = template.Must(template.New("foundry").Funcs(template.FuncMap{
	"address": func(s string) string { return common.HexToAddress(s).Hex() },
	"quote":   solidityString,
}).Parse(`// SPDX-License-Identifier: MIT
pragma solidity ^0.8.24;

import "forge-std/Script.sol";
import "../src/MonthlyDataUploader.sol";
import "../src/MangaNFT.sol";

// Reproduces deployment {{.Key}} on {{.Network}} (chain {{.ChainID}}).
contract DeployMangaNFT is Script {
    function run() public {
        address platformAddress = {{address .PlatformAddress}};
        address paymentToken = {{address .PaymentToken}};
        string memory uri = {{quote .URI}};

        vm.startBroadcast();

        MonthlyDataUploader monthlyDataUploader = new MonthlyDataUploader(
            platformAddress,
            address(0)
        );
        console.log("MonthlyDataUploader deployed at:", address(monthlyDataUploader));

        MangaNFT mangaNFT = new MangaNFT(
            uri,
            platformAddress,
            paymentToken,
            address(monthlyDataUploader)
        );
        console.log("MangaNFT deployed at:", address(mangaNFT));

        monthlyDataUploader.updateMangaNFTContract(address(mangaNFT));
        console.log("Updated MangaNFT contract address in MonthlyDataUploader");

        vm.stopBroadcast();

        require(monthlyDataUploader.mangaNFTContract() == address(mangaNFT), "MangaNFT address not set correctly");
        require(mangaNFT.monthlyDataUploader() == address(monthlyDataUploader), "MonthlyDataUploader address not set correctly");

        console.log("Deployment verification successful!");
    }
}
`))

type foundryParams struct {
	Key             string
	Network         string
	ChainID         uint64
	PlatformAddress string
	PaymentToken    string
	URI             string
}

// RenderFoundryScript produces a forge script that repeats the deployment
// described by rec
func RenderFoundryScript(key string, rec *models.DeploymentRecord) ([]byte, error) {
	var buf bytes.Buffer
	err := foundryScript.Execute(&buf, foundryParams{
		Key:             key,
		Network:         rec.Network,
		ChainID:         rec.ChainID,
		PlatformAddress: rec.Config.PlatformAddress,
		PaymentToken:    rec.Config.PaymentToken,
		URI:             rec.Config.BaseURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render foundry script: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFoundryScript renders the script into dir and returns its path
func WriteFoundryScript(dir, key string, rec *models.DeploymentRecord) (string, error) {
	content, err := RenderFoundryScript(key, rec)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FoundryScriptName)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func solidityString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
