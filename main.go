package main

import "github.com/ethanolivertroy/plugin-vuln-checker/cmd"

func main() {
	cmd.Execute()
}
