/*
Package bridgesdk is the client side of the seatbridge HTTP API, and the home
of the request, response and error types the server writes.

# Extension login

An editor extension logs in by handing a code off through the browser:

	client := bridgesdk.NewClient("https://bridge.example.com")

	verifier, challenge, err := bridgesdk.GeneratePKCE()
	pending, err := client.Initiate(ctx, bridgesdk.InitiateRequest{
		RedirectURI:   "http://127.0.0.1:53682/callback",
		PKCEChallenge: challenge,
	})

	// Open the browser on the confirm page with pending.State, then poll:
	tokens, err := client.PollExchange(ctx, bridgesdk.ExchangeRequest{
		Code:         pending.Code,
		State:        pending.State,
		PKCEVerifier: verifier,
	}, 2*time.Second)

Exchange answers ErrAuthNotComplete until the browser has confirmed, which
PollExchange waits out.

# Sessions

A Session wraps a token pair and refreshes it before the access token
expires:

	session := client.NewSession(tokens)
	info, err := session.Info(ctx)
	err = session.Revoke(ctx)

Refresh tokens are single use. Callers persisting tokens should save
Session.Tokens after every call.
*/
package bridgesdk
