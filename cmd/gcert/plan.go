package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var plan = cli.Command{
	Name:      "plan",
	Usage:     "show the status of a routing plan",
	ArgsUsage: "<plan id>",
	Action:    planAction,
}

func planAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument, the plan id")
	}
	return getJSON(ctx, fmt.Sprintf("/v1/plans/%s", ctx.Args().First()))
}
