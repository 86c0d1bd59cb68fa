package main

import "github.com/pgdbml/pgdbml/cmd"

func main() {
	cmd.Execute()
}
