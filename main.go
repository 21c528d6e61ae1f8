package main

import "github.com/ValentinKolb/memdoc/cmd"

func main() {
	cmd.Execute()
}
