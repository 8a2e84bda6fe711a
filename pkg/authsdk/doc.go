/*
Package authsdk provides a client SDK for the warden authentication and
access control API, together with the request and response types the server
itself uses.

# SDKClient vs Session

  - SDKClient: public operations (health, CSRF, verification codes, password
    recovery, integration calls with an API key)
  - Session: operations made on behalf of a user holding a bearer token issued
    by the identity provider

	client := authsdk.NewSDKClient("https://warden.example.com")

	// Public, CSRF protected: fetch the token once, the client replays it
	if err := client.FetchCSRF(ctx); err != nil { ... }
	err := client.VerifyCode(ctx, "482913", encryptedCode)

	// On behalf of a signed-in user
	session := client.NewSession(bearer)
	me, err := session.Me(ctx)

# Errors

Every non-2xx response is returned as an *APIError carrying the status code
and the server's message. Use errors.As or the IsUnauthorized / IsForbidden
helpers to branch on it.
*/
package authsdk
