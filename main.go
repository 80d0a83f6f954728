package main

import "leiloes-caixa/cmd"

func main() {
	cmd.Execute()
}
