package server

const schema = `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	user(id: Int!): User
	token: Token
}

type Mutation {
	signup(email: String!, password: String!, username: String!): LoginResponse
	login(username: String!, password: String!): LoginResponse
	twoFactorLogin(tfaToken: String!, authCode: String!): LoginResponse
	logout: Message

	changeUsername(username: String!, password: String!): ChangeResponse
	changePassword(oldPassword: String!, newPassword: String!): Message
	changeEmail(email: String!, password: String!): ChangeResponse
	verifyEmail(token: String!): ChangeResponse
	resendVerifyEmailToken: Message
	requestResetPassword(email: String!): Message
	resetPassword(token: String!, userId: Int!, newPassword: String!): Message
	undoEmailChange(token: String!): UndoEmailChangeResponse
	deleteAccount(password: String!): Message
	reportContent(network: String!, type: String!, content_id: String!, reason: String!, comments: String): Message

	addressLinkStart(network: String!, address: String!): AddressLinkType
	addressLinkConfirm(address_id: Int!, signature: String!): ChangeResponse
	addressUnlink(address: String!): ChangeResponse
	setDefaultAddress(address: String!): ChangeResponse
	addressLoginStart(address: String!): AddressLoginType
	addressLogin(address: String!, signature: String!): LoginResponse
	addressSignupStart(address: String!): AddressLoginType
	addressSignupConfirm(network: String!, address: String!, signature: String!): LoginResponse

	twoFactorSetupStart: TwoFactorSetup
	twoFactorSetupConfirm(authCode: String!): ChangeResponse
	twoFactorDisable(password: String!, authCode: String!): ChangeResponse
}

type User {
	id: Int!
	username: String!
	addresses: [Address!]!
}

type Address {
	network: String!
	address: String!
	default: Boolean!
}

type LoginResponse {
	token: String
	user_id: Int!
	tfa_required: Boolean!
	tfa_token: String
}

type Token {
	token: String
}

type Message {
	message: String
}

type ChangeResponse {
	message: String
	token: String
}

type UndoEmailChangeResponse {
	message: String
	email: String
	token: String
}

type AddressLinkType {
	message: String
	address_id: Int
	sign_message: String
}

type AddressLoginType {
	message: String
	signMessage: String
}

type TwoFactorSetup {
	secret: String!
	url: String!
	qr: String
}
`
