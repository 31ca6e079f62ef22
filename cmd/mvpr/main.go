package main

import (
	"fmt"
	"os"
)

func main() {
	mvprCmd.AddCommand(initCmd)
	mvprCmd.AddCommand(versionCmd)
	mvprCmd.AddCommand(pubkeyCmd)
	mvprCmd.AddCommand(memberCmd)
	mvprCmd.AddCommand(mintCmd)
	mvprCmd.AddCommand(burnCmd)
	mvprCmd.AddCommand(roleCmd)
	mvprCmd.AddCommand(proposeCmd)
	mvprCmd.AddCommand(transitionCmd)
	mvprCmd.AddCommand(voteCmd)
	mvprCmd.AddCommand(calculateCmd)
	mvprCmd.AddCommand(queryCmd)
	if err := mvprCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
