package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.0.1"
	app.Name = "gcert operator CLI"
	app.Usage = "Command line interface for gcertd daemon operators"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "rpcserver",
			Usage: "address of the gcertd daemon to connect to",
			Value: "http://localhost:9945",
		},
	}
	app.Commands = append(
		app.Commands,
		&createendpoint,
		&registerendpoint,
		&listendpoints,
		&claim,
		&transfer,
		&plan,
		&balance,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[gcert] %v\n", err)
	os.Exit(1)
}

func daemonURL(ctx *cli.Context, path string) string {
	return strings.TrimSuffix(ctx.String("rpcserver"), "/") + path
}

func getJSON(ctx *cli.Context, path string) error {
	res, err := http.Get(daemonURL(ctx, path))
	if err != nil {
		return err
	}
	return printResponse(res)
}

func postJSON(ctx *cli.Context, path string, body interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	res, err := http.Post(
		daemonURL(ctx, path), "application/json", bytes.NewReader(buf),
	)
	if err != nil {
		return err
	}
	return printResponse(res)
}

func printResponse(res *http.Response) error {
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("daemon replied with status %d: %s", res.StatusCode, body)
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, body, "", "\t"); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(indented.String())
	return nil
}
