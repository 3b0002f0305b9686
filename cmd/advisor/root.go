package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "advisor"}

	root.AddCommand(serveCMD(), researchCMD(), chatCMD(), migrateCMD())
	_ = root.Execute()
}
