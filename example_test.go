package apimanager_test

import (
	"context"
	"fmt"

	"github.com/and4010/apimanager"
)

func ExampleCall() {
	client := apimanager.New()
	api := apimanager.Endpoint{Name: "Product", URL: "https://example.com/product"}

	state := apimanager.Call[map[string]string](context.Background(), client, api, nil,
		apimanager.CallbackFuncs[map[string]string]{
			OnSuccessful: func(resp *apimanager.Response[map[string]string]) {
				fmt.Println("result:", resp.Data["result"])
			},
		},
		apimanager.WithCallDelay(0),
		apimanager.WithDebugResult(apimanager.DebugSuccessful("")),
	)
	fmt.Println("state:", state)
	// Output:
	// result: 0000
	// state: delivered
}
