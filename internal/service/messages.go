package service

// User-visible rejection messages, stable per failure reason.
const (
	MsgUnauthenticated = "Không xác định được người dùng."
	MsgForbidden       = "Bạn không có quyền thực hiện thao tác này."
	MsgStaffOnly       = "Chỉ nhân viên hỗ trợ mới được thực hiện thao tác này."
	MsgAdminOnly       = "Chỉ quản trị viên mới được thực hiện thao tác này."
	MsgStaffIDRequired = "Vui lòng chọn nhân viên."
	MsgInvalidStaff    = "Nhân viên không hợp lệ."
	MsgSameStaff       = "Vui lòng chọn nhân viên khác với người đang phụ trách."
	MsgPageOutOfRange  = "Tham số phân trang không hợp lệ."
	MsgStatusFilterBad = "Trạng thái lọc không hợp lệ."
)

// Support chat sessions.
const (
	MsgSessionNotFound        = "Không tìm thấy phiên chat."
	MsgSessionClosed          = "Phiên chat đã đóng."
	MsgSessionClaimedByOther  = "Phiên chat đã được nhân viên khác nhận."
	MsgSessionNotYourClaim    = "Bạn không phải nhân viên đang phụ trách phiên chat."
	MsgSessionNotParticipant  = "Bạn không thuộc phiên chat này."
	MsgSessionAlreadyAssigned = "Phiên chat đã có nhân viên phụ trách, vui lòng dùng chức năng chuyển nhân viên."
	MsgSessionNotAssigned     = "Phiên chat chưa có nhân viên phụ trách, vui lòng dùng chức năng gán nhân viên."
	MsgMessageEmpty           = "Nội dung tin nhắn trống."
	MsgMessageTooLong         = "Nội dung tin nhắn không được vượt quá 2000 ký tự."
)

// Tickets.
const (
	MsgTemplateCodeRequired  = "Vui lòng chọn chủ đề ticket."
	MsgTemplateCodeTooLong   = "Mã chủ đề không được vượt quá 50 ký tự."
	MsgDescriptionTooLong    = "Mô tả không được vượt quá 1000 ký tự."
	MsgTemplateInvalid       = "Chủ đề ticket không hợp lệ hoặc đã ngừng sử dụng."
	MsgCustomerOnly          = "Chỉ khách hàng mới được tạo ticket."
	MsgEmailNotVerified      = "Vui lòng xác minh email trước khi tạo ticket."
	MsgTicketNotFound        = "Không tìm thấy ticket."
	MsgTicketStaffUnresolved = "Không xác định được nhân viên, vui lòng đăng nhập lại."
	MsgTicketLocked          = "Ticket đã khoá, không thể nhận thêm."
	MsgTicketLockedTransfer  = "Ticket đã khoá, không thể chuyển hỗ trợ."
	MsgTicketLockedComplete  = "Ticket đã khoá, không thể hoàn tất."
	MsgTicketAssignFirst     = "Vui lòng gán ticket trước khi chuyển hỗ trợ."
	MsgTicketCareStaffOnly   = "Chỉ nhân viên chăm sóc khách hàng đang hoạt động mới được nhận ticket."
	MsgTicketNotAssignee     = "Bạn không phải người phụ trách ticket."
	MsgTicketAccessDenied    = "Bạn không có quyền xem ticket này."
)

// Priority tiers.
const (
	MsgTierNotFound           = "Không tìm thấy cấu hình ưu tiên."
	MsgTierNameRequired       = "Tên không được để trống."
	MsgTierNameTooLong        = "Tên không được vượt quá 120 ký tự."
	MsgTierDescTooLong        = "Mô tả không được vượt quá 500 ký tự."
	MsgTierLevelInvalid       = "PriorityLevel phải lớn hơn 0."
	MsgTierPriceNegative      = "Giá không được âm."
	MsgTierSpendNegative      = "Chi tiêu tối thiểu không được âm."
	MsgTierDuplicate          = "Rule đã tồn tại với cùng PriorityLevel và ngưỡng."
	MsgTierSpendHigher        = "PriorityLevel cao hơn phải có chi tiêu tối thiểu cao hơn."
	MsgTierSpendLower         = "PriorityLevel thấp hơn phải có chi tiêu tối thiểu thấp hơn."
	MsgTierPriceHigher        = "PriorityLevel cao hơn phải có giá cao hơn."
	MsgTierPriceLower         = "PriorityLevel thấp hơn phải có giá thấp hơn."
	MsgTierSpendQueryNegative = "Tổng chi tiêu không được âm."
)

// Identity.
const (
	MsgNameRequired         = "Vui lòng nhập họ tên."
	MsgEmailInvalid         = "Email không hợp lệ."
	MsgPasswordTooShort     = "Mật khẩu phải có ít nhất 8 ký tự."
	MsgEmailTaken           = "Email đã được sử dụng."
	MsgInvalidCredentials   = "Email hoặc mật khẩu không đúng."
	MsgAccountDisabled      = "Tài khoản đã bị khoá."
	MsgTooManyAttempts      = "Đăng nhập sai quá nhiều lần, vui lòng thử lại sau."
	MsgEmailAlreadyVerified = "Email đã được xác minh."
	MsgVerificationInvalid  = "Mã xác minh không hợp lệ hoặc đã hết hạn."
	MsgNameTooLong          = "Họ tên không được vượt quá 120 ký tự."
	MsgRoleInvalid          = "Vai trò nhân viên không hợp lệ."
	MsgUserNotFound         = "Không tìm thấy người dùng."
	MsgStatusInvalid        = "Trạng thái tài khoản không hợp lệ."
	MsgCannotDisableSelf    = "Không thể tự khoá tài khoản của mình."
)
