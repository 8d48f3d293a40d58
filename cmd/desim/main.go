// Command desim is the desctl CLI binary.
package main

import "github.com/sarchlab/desim/cmd/desctl"

func main() {
	desctl.Execute()
}
