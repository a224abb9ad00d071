package dialtone_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/dialtone"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/dsl"
)

// ExampleEngine shows a call walking a two-step flow without any HTTP involved.
func ExampleEngine() {
	b := dsl.New("hours", "Opening Hours")
	b.Say("start", "We are open nine to five.").Go("bye")
	b.End("bye", "Goodbye.")
	graph, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	eng := dialtone.New()
	if _, err := eng.Deploy(ctx, graph, "+15550100000"); err != nil {
		log.Fatal(err)
	}

	instr, err := eng.StartCall(ctx, domain.CallInitiated{CallID: "CA1", To: "+1 555 010 0000"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(instr.Kind)
	for _, s := range instr.Speech {
		fmt.Println(s.Text)
	}
	// Output:
	// hangup
	// We are open nine to five.
	// Goodbye.
}
