package browsertest

import (
	"fmt"
)

const (
	TargetURL     = "https://www.amazon.in/alexa-privacy/apd/rvh"
	TargetPrefix  = "/alexa-privacy/apd/"
	SignInURL     = "https://www.amazon.in/ap/signin?openid.return_to=https%3A%2F%2Fwww.amazon.in%2Falexa-privacy%2Fapd%2Frvh"
	ReAuthURL     = "https://www.amazon.in/ap/re-auth?arb=7d1c"
	MFAURL        = "https://www.amazon.in/ap/mfa?arb=7d1c"
	PushURL       = "https://www.amazon.in/ap/cv/approval?arb=7d1c"
	ChallengeURL  = "https://www.amazon.in/ap/challenge?arb=7d1c"
	HomeURL       = "https://www.amazon.in/"
	AccountEmail  = "user@example.com"
	AccountSecret = "correct horse"
	ValidCode     = "123456"
)

func page(title, body string) string {
	return fmt.Sprintf(`<!doctype html>
<html>
<head><title>%s</title><script>var ue_t0 = 1;</script></head>
<body>
<div id="a-page">
%s
</div>
</body>
</html>`, title, body)
}

func alert(message string) string {
	return fmt.Sprintf(`<div class="a-box a-alert a-alert-error"><div class="a-box-inner a-alert-container">
<h4 class="a-alert-heading">There was a problem</h4>
<div class="a-alert-content"><ul><li><span class="a-list-item">%s</span></li></ul></div>
</div></div>`, message)
}

// hiddenAlerts mirrors the templates the provider ships on every sign-in page
const hiddenAlerts = `<div id="auth-email-missing-alert" class="a-box a-alert-inline aok-hidden">
<div class="a-alert-content">Enter your email or mobile phone number</div></div>`

func EmailPage() Page {
	return Page{URL: SignInURL, HTML: page("Amazon Sign-In", `
<form name="signIn" method="post">
<h1>Sign in</h1>
<label for="ap_email">Email or mobile phone number</label>
<input type="email" id="ap_email" name="email">
<span class="a-button a-button-primary"><input id="continue" class="a-button-input" type="submit"></span>
`+hiddenAlerts+`
</form>`)}
}

func InvalidEmailPage() Page {
	return Page{URL: SignInURL, HTML: page("Amazon Sign-In", alert("We cannot find an account with that email address")+`
<form name="signIn" method="post">
<input type="email" id="ap_email" name="email">
<input id="continue" class="a-button-input" type="submit">
</form>`)}
}

func PasswordPage(email string) Page {
	return Page{URL: SignInURL, HTML: page("Amazon Sign-In", `
<form name="signIn" method="post">
<input type="hidden" name="email" value="`+email+`">
<h1>Sign in</h1>
<div><span>`+email+`</span> <a id="ap_change_login_claim" href="#">Change</a></div>
<label for="ap_password">Password</label>
<input type="password" id="ap_password" name="password">
<span class="a-button a-button-primary"><input id="signInSubmit" class="a-button-input" type="submit"></span>
</form>`)}
}

func IncorrectPasswordPage(email string) Page {
	return Page{URL: SignInURL, HTML: page("Amazon Sign-In", alert("Your password is incorrect")+`
<form name="signIn" method="post">
<input type="hidden" name="email" value="`+email+`">
<input type="password" id="ap_password" name="password">
<input id="signInSubmit" class="a-button-input" type="submit">
</form>`)}
}

func ReAuthPage(email string) Page {
	return Page{URL: ReAuthURL, HTML: page("Amazon Sign-In", `
<form name="signIn" method="post">
<h1>Sign in</h1>
<p>Hello, Test. Signed in as `+email+`</p>
<input type="password" id="ap_password" name="password">
<input id="signInSubmit" class="a-button-input" type="submit">
</form>`)}
}

// OTPPage is the SMS code page. rejected adds the provider's bad code alert.
func OTPPage(rejected bool) Page {
	body := `
<form id="auth-mfa-form" method="post">
<h1>Two-Step Verification</h1>
<p>A text message with a One Time Password (OTP) has been sent to your phone number ending in 42.</p>
<label for="auth-mfa-otpcode">Enter OTP:</label>
<input type="tel" id="auth-mfa-otpcode" name="otpCode" maxlength="6">
<span class="a-button a-button-primary"><input id="auth-signin-button" class="a-button-input" type="submit"></span>
</form>`
	if rejected {
		body = alert("The code you entered is not valid. Please check the code and try again.") + body
	}
	return Page{URL: MFAURL, HTML: page("Two-Step Verification", body)}
}

func PushPage() Page {
	return Page{URL: PushURL, HTML: page("Amazon Sign-In", `
<h1>Approve the notification</h1>
<p>To continue, approve the notification sent to:</p>
<p>AmazonShopping app on your Pixel</p>
<p>Check your device to approve this sign-in.</p>`)}
}

// AuthenticatorPage asks for a code from an authenticator app without any
// OTP markup
func AuthenticatorPage() Page {
	return Page{URL: MFAURL, HTML: page("Verification", `
<h1>Verification required</h1>
<p>Open your authenticator app and type the number it shows.</p>
<input type="text" name="appCode" placeholder="Enter the 6 digit Code">
<input class="a-button-input" type="submit">`)}
}

// ChallengePage is an auth page the flow cannot resolve
func ChallengePage() Page {
	return Page{URL: ChallengeURL, HTML: page("Authentication required", `
<h1>Solve this puzzle to protect your account</h1>
<div id="captcha-container"></div>`)}
}

func HomePage() Page {
	return Page{URL: HomeURL, HTML: page("Amazon.in", `<div id="nav-tools">Hello, Test</div>`)}
}

func TargetPage() Page {
	return Page{URL: TargetURL, HTML: page("Review Voice History", `
<h1>Review Voice History</h1>
<div class="apd-content-box">Today</div>`)}
}

// StaleErrorTargetPage is the target page still carrying an old error banner
func StaleErrorTargetPage() Page {
	return Page{URL: TargetURL, HTML: page("Review Voice History", alert("Your password is incorrect")+`
<h1>Review Voice History</h1>`)}
}
